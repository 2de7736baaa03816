package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter    metric.Int64Counter
	RequestDuration   metric.Float64Histogram
	DocumentsIngested metric.Int64Counter
	IngestionDuration metric.Float64Histogram
	QueriesServed     metric.Int64Counter
	TokensUsed        metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("docqa-backend")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	documentsIngested, err := meter.Int64Counter(
		"ingestion.documents.total",
		metric.WithDescription("Documents processed by the ingestion pipeline"),
	)
	if err != nil {
		return nil, err
	}

	ingestionDuration, err := meter.Float64Histogram(
		"ingestion.duration",
		metric.WithDescription("End-to-end ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	queriesServed, err := meter.Int64Counter(
		"query.requests.total",
		metric.WithDescription("RAG queries served"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:    requestCounter,
		RequestDuration:   requestDuration,
		DocumentsIngested: documentsIngested,
		IngestionDuration: ingestionDuration,
		QueriesServed:     queriesServed,
		TokensUsed:        tokensUsed,
	}, nil
}

// RecordRequest records one HTTP request outcome.
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.String("status", status),
	)
	m.RequestCounter.Add(context.Background(), 1, attrs)
	m.RequestDuration.Record(context.Background(), duration, attrs)
}

// RecordIngestion records one completed or failed ingestion run.
func (m *Metrics) RecordIngestion(outcome string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.DocumentsIngested.Add(context.Background(), 1, attrs)
	m.IngestionDuration.Record(context.Background(), seconds, attrs)
}

// RecordQuery records one served query and its token usage.
func (m *Metrics) RecordQuery(tokens int) {
	m.QueriesServed.Add(context.Background(), 1)
	m.TokensUsed.Add(context.Background(), int64(tokens))
}
