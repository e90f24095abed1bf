package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/domain/entities"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/internal/auth"
	"github.com/iainfluencecoreprogenesis-stack/DirectSpeak/internal/websocket"
)

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	hub *websocket.Hub,
	controller websocket.SessionController,
	issuer *auth.TokenIssuer,
	logger *zap.Logger,
) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "directspeak-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Practice-partner catalog
	v1.GET("/profiles", getProfiles)
	v1.GET("/voices", getVoices)

	// Session token issuance for UI clients
	v1.POST("/session/token", func(c echo.Context) error {
		return issueToken(c, issuer, logger)
	})

	// REST view of the current session state
	v1.GET("/session", func(c echo.Context) error {
		return c.JSON(http.StatusOK, controller.Snapshot())
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, issuer, logger)
	})
}

func getProfiles(c echo.Context) error {
	return c.JSON(http.StatusOK, entities.LanguageProfiles)
}

func getVoices(c echo.Context) error {
	return c.JSON(http.StatusOK, entities.AllVoices)
}

func issueToken(c echo.Context, issuer *auth.TokenIssuer, logger *zap.Logger) error {
	clientID := uuid.New().String()
	token, expiresAt, err := issuer.GenerateClientToken(clientID)
	if err != nil {
		logger.Error("Failed to generate client token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate session token",
		})
	}

	logger.Info("Client token issued", zap.String("client_id", clientID))

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		ClientID:  clientID,
	})
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, c echo.Context, issuer *auth.TokenIssuer, logger *zap.Logger) error {
	// Accept the token from the Authorization header, falling back to a
	// query parameter for browser WebSocket clients that cannot set headers.
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}
	if token == "" {
		token = c.QueryParam("token")
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		})
	}

	claims, err := issuer.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.ClientID == "" {
		logger.Error("WebSocket connection rejected: missing client ID in token")
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Client ID not found in token",
		})
	}

	logger.Info("WebSocket connection authenticated", zap.String("client_id", claims.ClientID))

	return websocket.HandleWebSocket(hub, c, claims.ClientID, logger)
}
