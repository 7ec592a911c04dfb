package models

import "time"

// Link maps a short code to its original URL.
// Links are hard-deleted so the unique indexes only cover live rows.
type Link struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	OriginalURL string     `gorm:"type:text;not null;index" json:"original_url"`
	ShortCode   string     `gorm:"size:64;uniqueIndex;not null" json:"short_code"`
	CustomAlias *string    `gorm:"size:64;uniqueIndex" json:"custom_alias,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
	Clicks      uint64     `gorm:"not null;default:0" json:"clicks"`
	LastUsedAt  *time.Time `gorm:"index" json:"last_used_at"`
	OwnerID     *uint      `gorm:"index" json:"owner_id,omitempty"`

	Owner *User `gorm:"foreignKey:OwnerID;constraint:OnDelete:SET NULL" json:"-"`
}

// Expired reports whether the link has passed its expiry at the given instant.
func (l *Link) Expired(at time.Time) bool {
	return l.ExpiresAt != nil && !at.Before(*l.ExpiresAt)
}

// OwnedBy reports whether the link belongs to the given user.
func (l *Link) OwnedBy(userID uint) bool {
	return l.OwnerID != nil && *l.OwnerID == userID
}

// Archive reasons
const (
	ArchiveReasonUnused       = "unused"
	ArchiveReasonOwnerDeleted = "owner_deleted"
)

// LinkArchive is the write-once audit record of a removed link.
type LinkArchive struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	ShortCode   string    `gorm:"size:64;not null;index" json:"short_code"`
	OriginalURL string    `gorm:"type:text;not null" json:"original_url"`
	DeletedAt   time.Time `gorm:"not null;index" json:"deleted_at"`
	Reason      string    `gorm:"size:32;not null" json:"reason"`
}
