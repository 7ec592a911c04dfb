// Package codegen produces short codes and arbitrates their uniqueness
// through the datastore.
package codegen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/mikepea/snip/pkg/snip/store"
	"github.com/sethvargo/go-retry"
)

const (
	// Alphabet is the base62 character set codes are drawn from.
	Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	DefaultLength      = 7
	MinLength          = 6
	MaxLength          = 8
	DefaultMaxAttempts = 5

	MaxAliasLength = 50
)

var (
	// ErrExhaustedRetries is returned when every generated code collided.
	ErrExhaustedRetries = errors.New("could not allocate a unique short code")
	// ErrAliasTaken is returned when a requested custom alias is in use.
	ErrAliasTaken = fmt.Errorf("alias already taken: %w", store.ErrDuplicateCode)
	// ErrInvalidAlias is returned for aliases that are malformed or reserved.
	ErrInvalidAlias = errors.New("invalid alias")
)

var aliasRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// reservedCodes collide with fixed routes under /links.
var reservedCodes = map[string]bool{
	"shorten":             true,
	"search":              true,
	"task-status":         true,
	"delete-unused-links": true,
	"import":              true,
	"export":              true,
}

// ClaimFunc tries to take ownership of code, typically by inserting a row.
// It must return an error wrapping store.ErrDuplicateCode when the code is
// already in use.
type ClaimFunc func(ctx context.Context, code string) error

// Generator creates random codes and claims them.
type Generator struct {
	length      int
	maxAttempts int
	alphabet    *big.Int
	random      func(n int) (string, error)
}

// New creates a generator producing codes of the given length. Lengths
// outside the supported range fall back to DefaultLength.
func New(length, maxAttempts int) *Generator {
	if length < MinLength || length > MaxLength {
		length = DefaultLength
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	g := &Generator{
		length:      length,
		maxAttempts: maxAttempts,
		alphabet:    big.NewInt(int64(len(Alphabet))),
	}
	g.random = g.randomCode
	return g
}

// Length returns the code length.
func (g *Generator) Length() int {
	return g.length
}

// Generate returns a fresh random code. It does not check uniqueness.
func (g *Generator) Generate() (string, error) {
	return g.random(g.length)
}

func (g *Generator) randomCode(n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, g.alphabet)
		if err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		sb.WriteByte(Alphabet[idx.Int64()])
	}
	return sb.String(), nil
}

// Allocate generates codes until claim succeeds. Collisions regenerate, up to
// the attempt limit, after which ErrExhaustedRetries is returned. Any other
// claim error stops immediately.
func (g *Generator) Allocate(ctx context.Context, claim ClaimFunc) (string, error) {
	var code string
	backoff := retry.WithMaxRetries(uint64(g.maxAttempts-1), retry.NewConstant(time.Nanosecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		candidate, err := g.Generate()
		if err != nil {
			return err
		}
		if err := claim(ctx, candidate); err != nil {
			if errors.Is(err, store.ErrDuplicateCode) {
				return retry.RetryableError(err)
			}
			return err
		}
		code = candidate
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateCode) {
			return "", ErrExhaustedRetries
		}
		return "", err
	}
	return code, nil
}

// Claim takes a caller-chosen alias in a single attempt.
func (g *Generator) Claim(ctx context.Context, alias string, claim ClaimFunc) error {
	if err := ValidateAlias(alias); err != nil {
		return err
	}
	if err := claim(ctx, alias); err != nil {
		if errors.Is(err, store.ErrDuplicateCode) {
			return ErrAliasTaken
		}
		return err
	}
	return nil
}

// ValidateAlias checks that s can be used as a custom alias or new code.
func ValidateAlias(s string) error {
	if s == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidAlias)
	}
	if len(s) > MaxAliasLength {
		return fmt.Errorf("%w: must be at most %d characters", ErrInvalidAlias, MaxAliasLength)
	}
	if !aliasRegex.MatchString(s) {
		return fmt.Errorf("%w: may only contain letters, numbers, hyphens, and underscores", ErrInvalidAlias)
	}
	if IsReserved(s) {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidAlias, s)
	}
	return nil
}

// IsReserved reports whether s collides with a fixed route.
func IsReserved(s string) bool {
	return reservedCodes[strings.ToLower(s)]
}
