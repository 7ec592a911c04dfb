package links

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/snip/pkg/snip/api"
	"github.com/mikepea/snip/pkg/snip/auth"
	"github.com/mikepea/snip/pkg/snip/models"
	"github.com/samber/lo"
)

// Handler handles link-related requests
type Handler struct {
	service *Service
	authn   auth.Authenticator
	baseURL string
}

// NewHandler creates a new links handler. baseURL prefixes short codes in
// responses.
func NewHandler(service *Service, authn auth.Authenticator, baseURL string) *Handler {
	RegisterValidators()
	return &Handler{
		service: service,
		authn:   authn,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ShortenRequest represents the request to create a link
type ShortenRequest struct {
	OriginalURL string     `json:"original_url" binding:"required,max=2048"`
	CustomAlias string     `json:"custom_alias" binding:"omitempty,shortcode"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// ShortenResponse represents a created link
type ShortenResponse struct {
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	ShortURL    string     `json:"short_url"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// RenameRequest carries the new code when it is not given as a query parameter
type RenameRequest struct {
	NewCode string `json:"new_code"`
}

// LinkResponse represents a link in search results
type LinkResponse struct {
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	Clicks      uint64     `json:"clicks"`
	LastUsedAt  *time.Time `json:"last_used_at"`
}

func linkToResponse(link models.Link, _ int) LinkResponse {
	return LinkResponse{
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
		Clicks:      link.Clicks,
		LastUsedAt:  link.LastUsedAt,
	}
}

// ShortURL returns the public URL of a short code.
func (h *Handler) ShortURL(code string) string {
	return h.baseURL + "/links/" + code
}

// Shorten creates a new short link
// @Summary Shorten a URL
// @Description Create a short code for a URL. A custom alias is used as the code when given.
// @Tags links
// @Accept json
// @Produce json
// @Param request body ShortenRequest true "Link details"
// @Success 200 {object} ShortenResponse
// @Failure 400 {object} map[string]string "Invalid input or alias already taken"
// @Router /links/shorten [post]
func (h *Handler) Shorten(c *gin.Context) {
	var req ShortenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	owner, _ := auth.GetPrincipal(c)
	link, err := h.service.Shorten(c.Request.Context(), ShortenInput{
		OriginalURL: req.OriginalURL,
		CustomAlias: req.CustomAlias,
		ExpiresAt:   req.ExpiresAt,
		Owner:       owner,
	})
	if err != nil {
		api.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, ShortenResponse{
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		ShortURL:    h.ShortURL(link.ShortCode),
		ExpiresAt:   link.ExpiresAt,
	})
}

// Rename changes the short code of a link
// @Summary Rename a short code
// @Description Move a link to a new short code. The old code becomes available.
// @Tags links
// @Accept json
// @Produce json
// @Param short_code path string true "Current short code"
// @Param new_code query string false "New short code (or JSON body new_code)"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /links/{short_code} [put]
func (h *Handler) Rename(c *gin.Context) {
	newCode := c.Query("new_code")
	if newCode == "" {
		var req RenameRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		newCode = req.NewCode
	}
	if newCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "new_code is required"})
		return
	}

	principal, _ := auth.GetPrincipal(c)
	link, err := h.service.Rename(c.Request.Context(), principal, c.Param("short_code"), newCode)
	if err != nil {
		api.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "Short code updated",
		"short_code": link.ShortCode,
		"short_url":  h.ShortURL(link.ShortCode),
	})
}

// Delete removes a link
// @Summary Delete a link
// @Tags links
// @Param short_code path string true "Short code"
// @Success 204
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /links/{short_code} [delete]
func (h *Handler) Delete(c *gin.Context) {
	principal, _ := auth.GetPrincipal(c)
	if err := h.service.Delete(c.Request.Context(), principal, c.Param("short_code")); err != nil {
		api.WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Search finds links by their exact original URL
// @Summary Search by original URL
// @Description Find links whose original URL matches exactly. The URL may be given as the path remainder or the url query parameter.
// @Tags links
// @Produce json
// @Param original_url path string true "Original URL"
// @Success 200 {array} LinkResponse
// @Failure 404 {object} map[string]string
// @Router /links/search/{original_url} [get]
func (h *Handler) Search(c *gin.Context) {
	originalURL := strings.TrimPrefix(c.Param("original_url"), "/")
	if originalURL == "" {
		originalURL = c.Query("url")
	} else if c.Request.URL.RawQuery != "" {
		// Query strings belong to the searched URL
		originalURL += "?" + c.Request.URL.RawQuery
	}

	found, err := h.service.Search(c.Request.Context(), originalURL)
	if err != nil {
		api.WriteError(c, err)
		return
	}
	if len(found) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No links found for this URL"})
		return
	}

	c.JSON(http.StatusOK, lo.Map(found, linkToResponse))
}

// RegisterRoutes registers link routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/shorten", auth.OptionalPrincipal(h.authn), h.Shorten)
	rg.GET("/search/*original_url", h.Search)
	rg.PUT("/:short_code", auth.RequirePrincipal(h.authn), h.Rename)
	rg.DELETE("/:short_code", auth.RequirePrincipal(h.authn), h.Delete)
}
