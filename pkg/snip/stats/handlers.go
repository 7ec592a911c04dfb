package stats

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/snip/pkg/snip/api"
)

// Handler serves link statistics
type Handler struct {
	cache *Cache
}

// NewHandler creates a new stats handler
func NewHandler(cache *Cache) *Handler {
	return &Handler{cache: cache}
}

// RegisterRoutes registers stats routes on the links group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:short_code/stats", h.Get)
}

// Get returns the cached snapshot for a link
// @Summary Link statistics
// @Description Click count and last use of a link. Values may lag by up to the cache TTL.
// @Tags links
// @Produce json
// @Param short_code path string true "Short code"
// @Success 200 {object} Snapshot
// @Failure 404 {object} map[string]string "Link not found"
// @Router /links/{short_code}/stats [get]
func (h *Handler) Get(c *gin.Context) {
	snap, err := h.cache.Get(c.Request.Context(), c.Param("short_code"))
	if err != nil {
		api.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
