package apikeys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/snip/pkg/snip/api"
	"github.com/mikepea/snip/pkg/snip/auth"
	"github.com/mikepea/snip/pkg/snip/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const (
	// KeyLength is the length of the generated API key in bytes (32 bytes = 64 hex chars)
	KeyLength = 32
	// KeyPrefixLength is the number of characters to store as prefix for identification
	KeyPrefixLength = 8
)

// ErrInvalidKey is returned for unknown or revoked keys.
var ErrInvalidKey = fmt.Errorf("invalid API key: %w", api.ErrUnauthenticated)

// Handler handles API key requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new API keys handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// APIKeyResponse represents an API key in responses
type APIKeyResponse struct {
	ID          uint       `json:"id"`
	KeyPrefix   string     `json:"key_prefix"`
	Description string     `json:"description"`
	LastUsedAt  *time.Time `json:"last_used_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CreateAPIKeyRequest represents a request to create an API key
type CreateAPIKeyRequest struct {
	Description string `json:"description" binding:"max=255"`
}

// CreateAPIKeyResponse includes the full key (only shown once)
type CreateAPIKeyResponse struct {
	ID          uint      `json:"id"`
	Key         string    `json:"key"`
	KeyPrefix   string    `json:"key_prefix"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// generateAPIKey generates a new random API key
func generateAPIKey() (string, error) {
	bytes := make([]byte, KeyLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// hashAPIKey creates a SHA-256 hash of the API key
func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// Create creates a new API key for the authenticated user
// @Summary Create API key
// @Tags api-keys
// @Accept json
// @Produce json
// @Param request body CreateAPIKeyRequest false "Key description"
// @Success 201 {object} CreateAPIKeyResponse
// @Security BearerAuth
// @Router /auth/api-keys [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Description is optional, so binding might fail with empty body
		req.Description = ""
	}

	key, err := generateAPIKey()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate API key"})
		return
	}

	apiKey := models.APIKey{
		UserID:      userID,
		KeyHash:     hashAPIKey(key),
		KeyPrefix:   key[:KeyPrefixLength],
		Description: req.Description,
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&apiKey).Error; err != nil {
		api.WriteError(c, err)
		return
	}

	// Return the full key - this is the only time it's visible
	c.JSON(http.StatusCreated, CreateAPIKeyResponse{
		ID:          apiKey.ID,
		Key:         key,
		KeyPrefix:   apiKey.KeyPrefix,
		Description: apiKey.Description,
		CreatedAt:   apiKey.CreatedAt,
	})
}

// List returns all API keys for the authenticated user
// @Summary List API keys
// @Tags api-keys
// @Produce json
// @Success 200 {array} APIKeyResponse
// @Security BearerAuth
// @Router /auth/api-keys [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var apiKeys []models.APIKey
	if err := h.db.WithContext(c.Request.Context()).Where("user_id = ?", userID).Order("created_at DESC").Find(&apiKeys).Error; err != nil {
		api.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, lo.Map(apiKeys, func(key models.APIKey, _ int) APIKeyResponse {
		return APIKeyResponse{
			ID:          key.ID,
			KeyPrefix:   key.KeyPrefix,
			Description: key.Description,
			LastUsedAt:  key.LastUsedAt,
			CreatedAt:   key.CreatedAt,
		}
	}))
}

// Delete revokes an API key
// @Summary Revoke API key
// @Tags api-keys
// @Param id path int true "Key ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /auth/api-keys/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)
	keyID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid API key ID"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Where("id = ? AND user_id = ?", keyID, userID).Delete(&models.APIKey{})
	if res.Error != nil {
		api.WriteError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key deleted"})
}

// ValidateAPIKey checks if an API key is valid and returns the stored key
func ValidateAPIKey(ctx context.Context, db *gorm.DB, key string) (*models.APIKey, error) {
	var apiKey models.APIKey
	if err := db.WithContext(ctx).Preload("User").Where("key_hash = ?", hashAPIKey(key)).First(&apiKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, err
	}
	if apiKey.User.ID == 0 {
		return nil, ErrInvalidKey
	}
	return &apiKey, nil
}

// UpdateLastUsed updates the last_used_at timestamp for an API key
func UpdateLastUsed(db *gorm.DB, apiKeyID uint) {
	now := time.Now().UTC()
	if err := db.Model(&models.APIKey{}).Where("id = ?", apiKeyID).Update("last_used_at", now).Error; err != nil {
		log.Printf("Failed to update API key %d last use: %v", apiKeyID, err)
	}
}

// Authenticator accepts both JWTs and API keys. JWTs contain dots, API keys
// are hex strings without dots.
type Authenticator struct {
	db     *gorm.DB
	tokens auth.Authenticator
}

// NewAuthenticator combines token authentication with API key lookup.
func NewAuthenticator(db *gorm.DB, tokens auth.Authenticator) *Authenticator {
	return &Authenticator{db: db, tokens: tokens}
}

// Authenticate implements auth.Authenticator.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) (*auth.Principal, error) {
	if strings.Contains(credential, ".") {
		return a.tokens.Authenticate(ctx, credential)
	}

	apiKey, err := ValidateAPIKey(ctx, a.db, credential)
	if err != nil {
		return nil, err
	}

	UpdateLastUsed(a.db.WithContext(ctx), apiKey.ID)
	return auth.PrincipalFromUser(&apiKey.User), nil
}

// RegisterRoutes registers API key routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/api-keys", h.Create)
	rg.GET("/api-keys", h.List)
	rg.DELETE("/api-keys/:id", h.Delete)
}
