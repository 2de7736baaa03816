package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"docqa-backend/internal/auth"
	"docqa-backend/internal/config"
	"docqa-backend/internal/logger"
	"docqa-backend/models"
	"docqa-backend/utils"
)

func SetupAuthRoutes(router *gin.Engine, cfg *config.Config, db *mongo.Database, tokens *auth.TokenService) {
	group := router.Group("/auth")
	usersCollection := db.Collection("users")

	group.POST("/register", func(c *gin.Context) {
		var req models.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		count, err := usersCollection.CountDocuments(c.Request.Context(), bson.M{
			"$or": []bson.M{
				{"username": req.Username},
				{"email": req.Email},
			},
		})
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to check existing users", nil)
			return
		}
		if count > 0 {
			utils.RespondWithConflict(c, "Username or email already exists")
			return
		}

		hashedPassword, err := utils.HashPassword(req.Password, cfg.BcryptCost)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to process password", nil)
			return
		}

		now := time.Now().UTC()
		user := models.User{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: hashedPassword,
			Role:         models.RoleUser,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		result, err := usersCollection.InsertOne(c.Request.Context(), user)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create user", nil)
			return
		}
		userID := result.InsertedID.(primitive.ObjectID).Hex()

		pair, err := tokens.IssueTokenPair(userID, user.Role)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue tokens", nil)
			return
		}

		logger.Info("User registered", "user_id", userID, "username", user.Username)
		c.JSON(http.StatusCreated, tokenPairResponse(pair, userID, &user))
	})

	group.POST("/login", func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		var user models.User
		err := usersCollection.FindOne(c.Request.Context(), bson.M{"username": req.Username}).Decode(&user)
		if err != nil || !utils.CheckPassword(req.Password, user.PasswordHash) {
			utils.RespondWithUnauthorized(c, "Invalid username or password")
			return
		}
		if !user.IsActive {
			utils.RespondWithUnauthorized(c, "Account is disabled")
			return
		}

		userID := user.ID.Hex()
		pair, err := tokens.IssueTokenPair(userID, user.Role)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue tokens", nil)
			return
		}

		now := time.Now().UTC()
		_, _ = usersCollection.UpdateOne(c.Request.Context(),
			bson.M{"_id": user.ID},
			bson.M{"$set": bson.M{"last_login": now}})

		c.JSON(http.StatusOK, tokenPairResponse(pair, userID, &user))
	})

	group.POST("/refresh", func(c *gin.Context) {
		var req struct {
			RefreshToken string `json:"refresh_token" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Refresh token is required", nil)
			return
		}

		claims, err := tokens.ValidateRefreshToken(c.Request.Context(), req.RefreshToken)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid or expired refresh token")
			return
		}

		// Rotate: revoke the presented refresh token before issuing a
		// new pair.
		ttl := time.Until(claims.ExpiresAt.Time)
		if err := tokens.RevokeToken(c.Request.Context(), claims.ID, ttl); err != nil {
			utils.RespondWithInternalError(c, "Failed to rotate refresh token", nil)
			return
		}

		var user models.User
		objID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid token subject")
			return
		}
		if err := usersCollection.FindOne(c.Request.Context(), bson.M{"_id": objID}).Decode(&user); err != nil {
			utils.RespondWithUnauthorized(c, "User no longer exists")
			return
		}

		pair, err := tokens.IssueTokenPair(claims.UserID, user.Role)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue tokens", nil)
			return
		}
		c.JSON(http.StatusOK, tokenPairResponse(pair, claims.UserID, &user))
	})

	group.POST("/logout", func(c *gin.Context) {
		tokenString := utils.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "Authentication token is required")
			return
		}

		claims, err := tokens.ValidateAccessToken(c.Request.Context(), tokenString)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid or expired token")
			return
		}

		ttl := time.Until(claims.ExpiresAt.Time)
		if err := tokens.RevokeToken(c.Request.Context(), claims.ID, ttl); err != nil {
			utils.RespondWithInternalError(c, "Failed to revoke token", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	})
}

func tokenPairResponse(pair *auth.TokenPair, userID string, user *models.User) models.TokenPairResponse {
	return models.TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		AccessExp:    pair.AccessExp,
		RefreshExp:   pair.RefreshExp,
		User: models.UserInfo{
			ID:       userID,
			Username: user.Username,
			Email:    user.Email,
			Role:     user.Role,
		},
	}
}
