package links

import (
	"context"
	"fmt"
	"time"

	"github.com/mikepea/snip/pkg/snip/api"
	"github.com/mikepea/snip/pkg/snip/auth"
	"github.com/mikepea/snip/pkg/snip/codegen"
	"github.com/mikepea/snip/pkg/snip/models"
	"github.com/mikepea/snip/pkg/snip/store"
)

// MaxURLLength bounds the stored original URL.
const MaxURLLength = 2048

var (
	ErrEmptyURL   = fmt.Errorf("%w: original_url is required", api.ErrInvalidInput)
	ErrURLTooLong = fmt.Errorf("%w: original_url must be at most %d characters", api.ErrInvalidInput, MaxURLLength)
	ErrNotOwner   = fmt.Errorf("not the owner of this link: %w", api.ErrForbidden)
)

// Service implements the link lifecycle on top of the store.
type Service struct {
	links *store.Links
	codes *codegen.Generator
}

// NewService creates a link service
func NewService(links *store.Links, codes *codegen.Generator) *Service {
	return &Service{links: links, codes: codes}
}

// ShortenInput describes a link to create.
type ShortenInput struct {
	OriginalURL string
	CustomAlias string
	ExpiresAt   *time.Time
	Owner       *auth.Principal
}

// Shorten creates a link. With a custom alias the alias becomes the short
// code and must be free; otherwise a random code is allocated.
func (s *Service) Shorten(ctx context.Context, in ShortenInput) (*models.Link, error) {
	if in.OriginalURL == "" {
		return nil, ErrEmptyURL
	}
	if len(in.OriginalURL) > MaxURLLength {
		return nil, ErrURLTooLong
	}

	params := store.CreateParams{
		OriginalURL: in.OriginalURL,
		ExpiresAt:   in.ExpiresAt,
	}
	if in.Owner != nil {
		params.OwnerID = &in.Owner.ID
	}

	var link *models.Link
	claim := func(ctx context.Context, code string) error {
		p := params
		p.ShortCode = code
		if in.CustomAlias != "" {
			p.CustomAlias = &code
		}
		created, err := s.links.Create(ctx, p)
		if err != nil {
			return err
		}
		link = created
		return nil
	}

	if in.CustomAlias != "" {
		if err := s.codes.Claim(ctx, in.CustomAlias, claim); err != nil {
			return nil, err
		}
		return link, nil
	}

	if _, err := s.codes.Allocate(ctx, claim); err != nil {
		return nil, err
	}
	return link, nil
}

// Get returns the link for a short code.
func (s *Service) Get(ctx context.Context, code string) (*models.Link, error) {
	return s.links.FindByCode(ctx, code)
}

// Rename moves a link to newCode. The caller must be allowed to manage it.
func (s *Service) Rename(ctx context.Context, p *auth.Principal, code, newCode string) (*models.Link, error) {
	if err := codegen.ValidateAlias(newCode); err != nil {
		return nil, err
	}

	link, err := s.manageable(ctx, p, code)
	if err != nil {
		return nil, err
	}
	if link.ShortCode == newCode {
		return link, nil
	}

	return s.links.Rename(ctx, link.ID, newCode)
}

// Delete removes a link. The caller must be allowed to manage it.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, code string) error {
	link, err := s.manageable(ctx, p, code)
	if err != nil {
		return err
	}
	return s.links.Delete(ctx, link.ID)
}

// Search returns every link pointing at exactly originalURL.
func (s *Service) Search(ctx context.Context, originalURL string) ([]models.Link, error) {
	if originalURL == "" {
		return nil, ErrEmptyURL
	}
	return s.links.FindByOriginalURL(ctx, originalURL)
}

// Owned returns the links created by the principal.
func (s *Service) Owned(ctx context.Context, p *auth.Principal) ([]models.Link, error) {
	if p == nil {
		return nil, api.ErrUnauthenticated
	}
	return s.links.ListByOwner(ctx, p.ID)
}

// manageable loads a link the principal may rename or delete. Owned links
// are limited to their owner and admins; anonymous links to any signed-in
// user.
func (s *Service) manageable(ctx context.Context, p *auth.Principal, code string) (*models.Link, error) {
	if p == nil {
		return nil, api.ErrUnauthenticated
	}

	link, err := s.links.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if link.OwnerID != nil && !link.OwnedBy(p.ID) && !p.IsAdmin() {
		return nil, ErrNotOwner
	}
	return link, nil
}
