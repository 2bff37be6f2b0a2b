// Package article defines crawled news articles and their storage contract.
package article

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no article matches.
var ErrNotFound = errors.New("article not found")

// Article is a parsed news article. URL is the dedupe key.
type Article struct {
	ID          int64
	CategoryID  int
	Title       string
	Body        string
	PublishedAt string // RFC3339 when the source date was parseable, raw text otherwise
	Publisher   string
	Reporter    string
	URL         string
	CreatedAt   time.Time
	DeletedAt   *time.Time
}

// Store persists articles. Save does not dedupe; callers check ExistsByURL first,
// holding the URL's lock from a URLLock while doing so.
type Store interface {
	// Save assigns ID and CreatedAt when they are unset.
	Save(ctx context.Context, a *Article) error
	ExistsByURL(ctx context.Context, url string) (bool, error)
	FindByURL(ctx context.Context, url string) (*Article, error)
}
