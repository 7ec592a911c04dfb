package auth

import (
	"context"
	"log"

	"github.com/mikepea/snip/pkg/snip/models"
	"gorm.io/gorm"
)

// EnsureAdmin creates an admin user if no admin exists in the database.
func EnsureAdmin(ctx context.Context, db *gorm.DB, username, email, password string) error {
	db = db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil // Admin already exists
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}

	admin := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		SystemRole:   models.SystemRoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	log.Printf("Created default admin user: %s", username)
	return nil
}
