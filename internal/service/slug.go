package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugLength   = 50
	maxSlugSuffix   = 1000
	maxSlugCheckErr = 3
	defaultSlug     = "goal"
)

// SlugChecker reports whether a slug is already used by one of the user's goals.
type SlugChecker interface {
	SlugExists(ctx context.Context, userID, slug string) (bool, error)
}

type SlugGenerator struct {
	now func() time.Time
}

func NewSlugGenerator() *SlugGenerator {
	return &SlugGenerator{now: time.Now}
}

// Generate derives a slug from title that is unused in userID's namespace at the
// time of the check. Concurrent creation of the same title can still collide at
// insert; callers treat that as retryable. If the uniqueness check keeps failing
// a random-suffixed slug is returned instead.
func (g *SlugGenerator) Generate(ctx context.Context, checker SlugChecker, title, userID string) string {
	base := Slugify(title)
	candidate := base
	failures := 0

	for n := 1; n <= maxSlugSuffix; {
		exists, err := checker.SlugExists(ctx, userID, candidate)
		if err != nil {
			failures++
			if failures >= maxSlugCheckErr {
				slog.Warn("slug uniqueness check failing, using random slug", "error", err, "user_id", userID)
				return g.RandomSlug(title)
			}
			continue
		}
		if !exists {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
		n++
	}

	return g.RandomSlug(title)
}

// RandomSlug appends a base36 timestamp and a random token to the title's slug.
func (g *SlugGenerator) RandomSlug(title string) string {
	token := make([]byte, 3)
	_, _ = rand.Read(token)
	ts := strconv.FormatInt(g.now().UnixMilli(), 36)
	return Slugify(title) + "-" + ts + "-" + hex.EncodeToString(token)
}

var foldMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases title, folds accents, drops everything that is not a
// letter, digit or whitespace, joins words with hyphens and caps the length.
func Slugify(title string) string {
	lower := strings.ToLower(title)
	folded, _, err := transform.String(foldMarks, lower)
	if err != nil {
		folded = lower
	}

	var b strings.Builder
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	slug := strings.Join(strings.Fields(b.String()), "-")
	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}
	if slug == "" {
		return defaultSlug
	}
	return slug
}
