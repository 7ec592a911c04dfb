package importexport

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/snip/pkg/snip/api"
	"github.com/mikepea/snip/pkg/snip/auth"
	"github.com/mikepea/snip/pkg/snip/links"
	"github.com/mikepea/snip/pkg/snip/models"
	"github.com/samber/lo"
)

// Handler handles import/export requests
type Handler struct {
	service *links.Service
	authn   auth.Authenticator
}

// NewHandler creates a new import/export handler
func NewHandler(service *links.Service, authn auth.Authenticator) *Handler {
	links.RegisterValidators()
	return &Handler{service: service, authn: authn}
}

// ImportItem is one link to create
type ImportItem struct {
	OriginalURL string     `json:"original_url" binding:"required,max=2048"`
	CustomAlias string     `json:"custom_alias" binding:"omitempty,shortcode"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// ImportRequest represents an import request
type ImportRequest struct {
	Links []ImportItem `json:"links" binding:"required,min=1,max=1000,dive"`
}

// ImportedLink reports a created link
type ImportedLink struct {
	Index       int    `json:"index"`
	ShortCode   string `json:"short_code"`
	OriginalURL string `json:"original_url"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Imported int            `json:"imported"`
	Skipped  int            `json:"skipped"`
	Links    []ImportedLink `json:"links"`
	Errors   []string       `json:"errors,omitempty"`
}

// ExportLink represents a link for export
type ExportLink struct {
	ShortCode   string     `json:"short_code"`
	OriginalURL string     `json:"original_url"`
	CustomAlias *string    `json:"custom_alias,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	Clicks      uint64     `json:"clicks"`
	LastUsedAt  *time.Time `json:"last_used_at"`
}

// Import creates links in bulk for the authenticated user. Each item is
// independent: failures are reported and skipped.
// @Summary Import links
// @Tags links
// @Accept json
// @Produce json
// @Param request body ImportRequest true "Links to create"
// @Success 200 {object} ImportResult
// @Security BearerAuth
// @Router /links/import [post]
func (h *Handler) Import(c *gin.Context) {
	principal, _ := auth.GetPrincipal(c)

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := ImportResult{
		Links:  []ImportedLink{},
		Errors: []string{},
	}

	for i, item := range req.Links {
		link, err := h.service.Shorten(c.Request.Context(), links.ShortenInput{
			OriginalURL: item.OriginalURL,
			CustomAlias: item.CustomAlias,
			ExpiresAt:   item.ExpiresAt,
			Owner:       principal,
		})
		if err != nil {
			result.Errors = append(result.Errors, "link "+strconv.Itoa(i)+": "+api.Message(err))
			result.Skipped++
			continue
		}

		result.Links = append(result.Links, ImportedLink{
			Index:       i,
			ShortCode:   link.ShortCode,
			OriginalURL: link.OriginalURL,
		})
		result.Imported++
	}

	c.JSON(http.StatusOK, result)
}

// Export returns every link owned by the authenticated user
// @Summary Export links
// @Tags links
// @Produce json
// @Success 200 {array} ExportLink
// @Security BearerAuth
// @Router /links/export [get]
func (h *Handler) Export(c *gin.Context) {
	principal, _ := auth.GetPrincipal(c)

	owned, err := h.service.Owned(c.Request.Context(), principal)
	if err != nil {
		api.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, lo.Map(owned, func(link models.Link, _ int) ExportLink {
		return ExportLink{
			ShortCode:   link.ShortCode,
			OriginalURL: link.OriginalURL,
			CustomAlias: link.CustomAlias,
			CreatedAt:   link.CreatedAt,
			ExpiresAt:   link.ExpiresAt,
			Clicks:      link.Clicks,
			LastUsedAt:  link.LastUsedAt,
		}
	}))
}

// RegisterRoutes registers import/export routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	protected := rg.Group("", auth.RequirePrincipal(h.authn))
	protected.POST("/import", h.Import)
	protected.GET("/export", h.Export)
}
