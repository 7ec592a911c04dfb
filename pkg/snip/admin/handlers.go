package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/snip/pkg/snip/api"
	"github.com/mikepea/snip/pkg/snip/auth"
	"github.com/mikepea/snip/pkg/snip/models"
	"github.com/mikepea/snip/pkg/snip/store"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const (
	defaultArchiveLimit = 50
	maxArchiveLimit     = 500
)

// Handler handles admin requests
type Handler struct {
	db    *gorm.DB
	links *store.Links
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB, links *store.Links) *Handler {
	return &Handler{db: db, links: links}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID         uint   `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	SystemRole string `json:"system_role"`
	CreatedAt  string `json:"created_at"`
	LinkCount  int64  `json:"link_count"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	SystemRole *string `json:"system_role" binding:"omitempty,oneof=admin user"`
}

// StatsResponse represents system statistics
type StatsResponse struct {
	store.Summary
	TotalUsers    int64 `json:"total_users"`
	AdminUsers    int64 `json:"admin_users"`
	ActiveAPIKeys int64 `json:"active_api_keys"`
}

// ArchiveResponse is one page of the link archive
type ArchiveResponse struct {
	Items  []models.LinkArchive `json:"items"`
	Total  int64                `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

func (h *Handler) userResponse(user models.User) UserResponse {
	var linkCount int64
	h.db.Model(&models.Link{}).Where("owner_id = ?", user.ID).Count(&linkCount)

	return UserResponse{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		SystemRole: string(user.SystemRole),
		CreatedAt:  user.CreatedAt.Format("2006-01-02T15:04:05Z"),
		LinkCount:  linkCount,
	}
}

func parseUserID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return 0, false
	}
	return uint(id), true
}

// ListUsers returns all users (admin only)
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User

	query := h.db.WithContext(c.Request.Context()).Order("created_at DESC")

	// Optional search by username or email
	if search := c.Query("q"); search != "" {
		query = query.Where("username LIKE ? OR email LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	// Optional filter by role
	if role := c.Query("role"); role != "" {
		query = query.Where("system_role = ?", role)
	}

	if err := query.Find(&users).Error; err != nil {
		api.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, lo.Map(users, func(u models.User, _ int) UserResponse {
		return h.userResponse(u)
	}))
}

// GetUser returns a single user by ID (admin only)
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, h.userResponse(user))
}

// UpdateUser changes a user's system role (admin only)
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	db := h.db.WithContext(c.Request.Context())

	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Prevent admin from demoting themselves
	currentUserID, _ := auth.GetUserID(c)
	if id == currentUserID && req.SystemRole != nil && *req.SystemRole != string(models.SystemRoleAdmin) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot demote yourself"})
		return
	}

	if req.SystemRole != nil {
		if err := db.Model(&user).Update("system_role", *req.SystemRole).Error; err != nil {
			api.WriteError(c, err)
			return
		}
	}

	// Reload user
	db.First(&user, id)

	c.JSON(http.StatusOK, h.userResponse(user))
}

// DeleteUser soft-deletes a user, revokes their API keys and archives their
// links (admin only)
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	// Prevent admin from deleting themselves
	currentUserID, _ := auth.GetUserID(c)
	if id == currentUserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete yourself"})
		return
	}

	ctx := c.Request.Context()

	var user models.User
	if err := h.db.WithContext(ctx).First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var archived int
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.APIKey{}).Error; err != nil {
			return err
		}

		links := store.NewLinks(tx)
		owned, err := links.ListByOwner(ctx, user.ID)
		if err != nil {
			return err
		}
		archived, err = links.ArchiveAndDelete(ctx, owned, models.ArchiveReasonOwnerDeleted, links.Now())
		if err != nil {
			return err
		}

		return tx.Delete(&user).Error
	})
	if err != nil {
		api.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "User deleted successfully",
		"archived_links": archived,
	})
}

// GetStats returns system-wide statistics (admin only)
// @Summary System statistics
// @Tags admin
// @Produce json
// @Success 200 {object} StatsResponse
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Security BearerAuth
// @Router /admin/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()

	summary, err := h.links.Summary(ctx)
	if err != nil {
		api.WriteError(c, err)
		return
	}

	stats := StatsResponse{Summary: *summary}
	db := h.db.WithContext(ctx)
	db.Model(&models.User{}).Count(&stats.TotalUsers)
	db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&stats.AdminUsers)
	db.Model(&models.APIKey{}).Count(&stats.ActiveAPIKeys)

	c.JSON(http.StatusOK, stats)
}

// ListArchive pages through archived links, newest first (admin only)
// @Summary List archived links
// @Tags admin
// @Produce json
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset"
// @Success 200 {object} ArchiveResponse
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /admin/archive [get]
func (h *Handler) ListArchive(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultArchiveLimit)))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return
	}
	limit = min(limit, maxArchiveLimit)

	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid offset"})
		return
	}

	items, total, err := h.links.ListArchive(c.Request.Context(), limit, offset)
	if err != nil {
		api.WriteError(c, err)
		return
	}

	c.JSON(http.StatusOK, ArchiveResponse{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/archive", h.ListArchive)
	rg.GET("/users", h.ListUsers)
	rg.GET("/users/:id", h.GetUser)
	rg.PUT("/users/:id", h.UpdateUser)
	rg.DELETE("/users/:id", h.DeleteUser)
}
