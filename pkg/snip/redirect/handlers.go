package redirect

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/snip/pkg/snip/api"
)

// Handler handles redirect requests
type Handler struct {
	engine *Engine
}

// NewHandler creates a new redirect handler
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

// Redirect sends the client to the link's original URL and counts the click.
// @Summary Follow a short link
// @Tags links
// @Param short_code path string true "Short code"
// @Success 307
// @Failure 404 {object} map[string]string "Link not found"
// @Failure 410 {object} map[string]string "Link has expired"
// @Router /links/{short_code} [get]
func (h *Handler) Redirect(c *gin.Context) {
	target, err := h.engine.Resolve(c.Request.Context(), c.Param("short_code"))
	if err != nil {
		api.WriteError(c, err)
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, target)
}

// RegisterRoutes registers redirect routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:short_code", h.Redirect)
}
