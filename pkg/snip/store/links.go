package store

import (
	"context"
	"fmt"
	"time"

	"github.com/mikepea/snip/pkg/snip/models"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const (
	// DefaultTimeout bounds every store operation.
	DefaultTimeout = 5 * time.Second

	deleteBatchSize = 500
)

// Links is the persistence layer for links and their archive.
type Links struct {
	db      *gorm.DB
	timeout time.Duration
	now     func() time.Time
	inTx    bool
}

// Option configures a Links store.
type Option func(*Links)

// WithTimeout sets the per-operation deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *Links) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Links) {
		if now != nil {
			s.now = now
		}
	}
}

// NewLinks creates a store on the given database handle.
func NewLinks(db *gorm.DB, opts ...Option) *Links {
	s := &Links{
		db:      db,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Timeout returns a view of the store whose operations use d as their
// deadline instead of the configured one.
func (s *Links) Timeout(d time.Duration) *Links {
	if d <= 0 {
		return s
	}
	cp := *s
	cp.timeout = d
	return &cp
}

// Now returns the store's current time in UTC.
func (s *Links) Now() time.Time {
	return s.now().UTC()
}

// conn returns a session bound to ctx. Outside a transaction the session
// also carries the per-operation deadline.
func (s *Links) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if s.inTx {
		return s.db.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

// Transaction runs fn against a transaction-scoped store. Any error from fn
// rolls the whole transaction back. Nested calls reuse the outer transaction.
func (s *Links) Transaction(ctx context.Context, fn func(tx *Links) error) error {
	if s.inTx {
		return fn(s)
	}

	db, cancel := s.conn(ctx)
	defer cancel()

	err := db.Transaction(func(tx *gorm.DB) error {
		return fn(&Links{db: tx, timeout: s.timeout, now: s.now, inTx: true})
	})
	return classify(err)
}

// CreateParams holds the fields of a new link.
type CreateParams struct {
	OriginalURL string
	ShortCode   string
	CustomAlias *string
	OwnerID     *uint
	ExpiresAt   *time.Time
}

// Create inserts a link and relies on the unique indexes to arbitrate codes.
// A taken code or alias yields ErrDuplicateCode. When no expiry is given it
// defaults to six calendar months after creation.
func (s *Links) Create(ctx context.Context, p CreateParams) (*models.Link, error) {
	now := s.Now()
	expiresAt := p.ExpiresAt
	if expiresAt == nil {
		expiresAt = lo.ToPtr(AddHalfYear(now))
	}

	link := &models.Link{
		OriginalURL: p.OriginalURL,
		ShortCode:   p.ShortCode,
		CustomAlias: p.CustomAlias,
		OwnerID:     p.OwnerID,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	}

	db, cancel := s.conn(ctx)
	defer cancel()

	if err := db.Create(link).Error; err != nil {
		return nil, classify(err)
	}
	return link, nil
}

// FindByCode looks up a live link by short code.
func (s *Links) FindByCode(ctx context.Context, code string) (*models.Link, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var link models.Link
	if err := db.Where("short_code = ?", code).First(&link).Error; err != nil {
		return nil, classify(err)
	}
	return &link, nil
}

// FindByID looks up a live link by id.
func (s *Links) FindByID(ctx context.Context, id uint) (*models.Link, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var link models.Link
	if err := db.First(&link, id).Error; err != nil {
		return nil, classify(err)
	}
	return &link, nil
}

// RecordHit increments the click counter of the link with the given id and
// stamps last_used_at in a single UPDATE so concurrent hits are never lost.
func (s *Links) RecordHit(ctx context.Context, id uint, at time.Time) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	res := db.Model(&models.Link{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"clicks":       gorm.Expr("clicks + ?", 1),
			"last_used_at": at.UTC(),
		})
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Rename moves a link to a new short code. The custom alias follows the code.
// The old code is free for reuse once this returns.
func (s *Links) Rename(ctx context.Context, id uint, newCode string) (*models.Link, error) {
	var renamed *models.Link
	err := s.Transaction(ctx, func(tx *Links) error {
		link, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}

		db, cancel := tx.conn(ctx)
		defer cancel()

		err = db.Model(link).Updates(map[string]interface{}{
			"short_code":   newCode,
			"custom_alias": newCode,
		}).Error
		if err != nil {
			return classify(err)
		}

		link.ShortCode = newCode
		link.CustomAlias = lo.ToPtr(newCode)
		renamed = link
		return nil
	})
	if err != nil {
		return nil, err
	}
	return renamed, nil
}

// Delete hard-deletes a link, releasing its code.
func (s *Links) Delete(ctx context.Context, id uint) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	res := db.Delete(&models.Link{}, id)
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByOriginalURL returns every live link whose original URL matches exactly.
func (s *Links) FindByOriginalURL(ctx context.Context, originalURL string) ([]models.Link, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var links []models.Link
	if err := db.Where("original_url = ?", originalURL).Order("id").Find(&links).Error; err != nil {
		return nil, classify(err)
	}
	return links, nil
}

// ListByOwner returns the links owned by a user, newest first.
func (s *Links) ListByOwner(ctx context.Context, ownerID uint) ([]models.Link, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var links []models.Link
	if err := db.Where("owner_id = ?", ownerID).Order("created_at DESC, id DESC").Find(&links).Error; err != nil {
		return nil, classify(err)
	}
	return links, nil
}

// ListUnusedSince returns links used at least once whose last use is strictly
// before cutoff. Links that were never used are not returned.
func (s *Links) ListUnusedSince(ctx context.Context, cutoff time.Time) ([]models.Link, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var links []models.Link
	err := db.Where("last_used_at IS NOT NULL AND last_used_at < ?", cutoff.UTC()).
		Order("id").
		Find(&links).Error
	if err != nil {
		return nil, classify(err)
	}
	return links, nil
}

// ArchiveAndDelete writes an archive row per link and deletes exactly those
// links, all in one transaction. If any link vanished in the meantime the
// batch fails with ErrPartialDelete and nothing is changed.
func (s *Links) ArchiveAndDelete(ctx context.Context, links []models.Link, reason string, at time.Time) (int, error) {
	if len(links) == 0 {
		return 0, nil
	}

	archives := lo.Map(links, func(l models.Link, _ int) models.LinkArchive {
		return models.LinkArchive{
			ShortCode:   l.ShortCode,
			OriginalURL: l.OriginalURL,
			DeletedAt:   at.UTC(),
			Reason:      reason,
		}
	})
	ids := lo.Map(links, func(l models.Link, _ int) uint { return l.ID })

	err := s.Transaction(ctx, func(tx *Links) error {
		db, cancel := tx.conn(ctx)
		defer cancel()

		if err := db.CreateInBatches(&archives, deleteBatchSize).Error; err != nil {
			return classify(err)
		}

		var deleted int64
		for _, chunk := range lo.Chunk(ids, deleteBatchSize) {
			res := db.Where("id IN ?", chunk).Delete(&models.Link{})
			if res.Error != nil {
				return classify(res.Error)
			}
			deleted += res.RowsAffected
		}
		if deleted != int64(len(ids)) {
			return fmt.Errorf("%w: archived %d, deleted %d", ErrPartialDelete, len(ids), deleted)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(links), nil
}

// ListArchive pages through the archive, newest first, and returns the total.
func (s *Links) ListArchive(ctx context.Context, limit, offset int) ([]models.LinkArchive, int64, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var total int64
	if err := db.Model(&models.LinkArchive{}).Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}

	var rows []models.LinkArchive
	err := db.Order("deleted_at DESC, id DESC").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, 0, classify(err)
	}
	return rows, total, nil
}

// Summary holds aggregate link counters.
type Summary struct {
	Links         int64 `json:"total_links"`
	NeverUsed     int64 `json:"never_used_links"`
	Expired       int64 `json:"expired_links"`
	Clicks        int64 `json:"total_clicks"`
	ArchivedLinks int64 `json:"archived_links"`
}

// Summary computes aggregate counters over live and archived links.
func (s *Links) Summary(ctx context.Context) (*Summary, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var sum Summary
	queries := []*gorm.DB{
		db.Model(&models.Link{}).Count(&sum.Links),
		db.Model(&models.Link{}).Where("last_used_at IS NULL").Count(&sum.NeverUsed),
		db.Model(&models.Link{}).Where("expires_at IS NOT NULL AND expires_at <= ?", s.Now()).Count(&sum.Expired),
		db.Model(&models.Link{}).Select("COALESCE(SUM(clicks), 0)").Scan(&sum.Clicks),
		db.Model(&models.LinkArchive{}).Count(&sum.ArchivedLinks),
	}
	for _, q := range queries {
		if q.Error != nil {
			return nil, classify(q.Error)
		}
	}
	return &sum, nil
}
