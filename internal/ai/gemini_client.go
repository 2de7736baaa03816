package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"docqa-backend/internal/config"
	"docqa-backend/internal/logger"
)

// systemPrompt directs the model to answer strictly from supplied context
// and history, resolve referential pronouns from prior turns, and say so
// explicitly when the context is insufficient.
const systemPrompt = `You are a helpful AI assistant that answers questions using the provided context and conversation history.

Guidelines:
- Use information from the provided context to answer questions
- Pay attention to the conversation history to understand context and references (like "it", "that", "this", etc.)
- If the current question refers to something mentioned in previous conversation turns, use that context to provide a better answer
- If the answer is not contained in the context or conversation history, say "I don't have enough information to answer this question based on the provided documents."
- Be concise but comprehensive in your responses
- Cite specific parts of the context when relevant
- If multiple documents contain relevant information, synthesize them into a coherent response
- When answering follow-up questions, maintain continuity with the previous conversation`

// Turn is one prior question/answer exchange passed as generation history.
type Turn struct {
	Question string
	Answer   string
}

// GenerationResult carries the answer text and token accounting for one call.
type GenerationResult struct {
	Answer       string
	PromptTokens int
	OutputTokens int
	TotalTokens  int
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

// GeminiClient wraps the Generative AI API with a circuit breaker and a
// client-side rate limiter. Generation calls are synchronous blocking I/O
// with no mid-call cancellation contract.
type GeminiClient struct {
	client      *genai.Client
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	model       string
	maxTokens   int
	temperature float64
}

func NewGeminiClient(cfg *config.Config) (*GeminiClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	limits := getRateLimits(cfg.GeminiTier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), limits.RPM/10+1)

	return &GeminiClient{
		client:      client,
		breaker:     breaker,
		rateLimiter: rateLimiter,
		model:       cfg.GeminiModel,
		maxTokens:   cfg.LLMMaxTokens,
		temperature: cfg.LLMTemperature,
	}, nil
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// Generate produces an answer from document context, prior turns and the
// current question. A failure here is not locally recoverable; callers
// surface it as a generation failure.
func (gc *GeminiClient) Generate(ctx context.Context, contextText, question string, history []Turn) (*GenerationResult, error) {
	tracer := otel.Tracer("gemini-client")
	ctx, span := tracer.Start(ctx, "gemini.generate")
	defer span.End()

	span.SetAttributes(
		attribute.String("gemini.model", gc.model),
		attribute.Int("gemini.context_length", len(contextText)),
		attribute.Int("gemini.history_turns", len(history)),
	)

	if err := gc.rateLimiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		return nil, err
	}

	result, err := gc.breaker.Execute(func() (interface{}, error) {
		model := gc.client.GenerativeModel(gc.model)
		model.SetTemperature(float32(gc.temperature))
		model.SetMaxOutputTokens(int32(gc.maxTokens))
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}

		chat := model.StartChat()
		for _, turn := range history {
			chat.History = append(chat.History,
				&genai.Content{Role: "user", Parts: []genai.Part{genai.Text(turn.Question)}},
			)
			if turn.Answer != "" {
				chat.History = append(chat.History,
					&genai.Content{Role: "model", Parts: []genai.Part{genai.Text(turn.Answer)}},
				)
			}
		}

		userMessage := fmt.Sprintf("Context from user's documents:\n%s\n\nQuestion: %s", contextText, question)
		return chat.SendMessage(ctx, genai.Text(userMessage))
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	resp := result.(*genai.GenerateContentResponse)
	answer, err := extractResponseText(resp)
	if err != nil {
		return nil, err
	}

	gen := &GenerationResult{Answer: answer}
	if resp.UsageMetadata != nil {
		gen.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		gen.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		gen.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	span.SetAttributes(attribute.Int("gemini.total_tokens", gen.TotalTokens))

	return gen, nil
}

func extractResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response generated")
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return "", fmt.Errorf("response contained no text parts")
	}
	return text, nil
}

func (gc *GeminiClient) Close() error {
	return gc.client.Close()
}
