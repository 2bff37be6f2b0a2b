package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/newsword/newsword/pkg/article"
)

var articleColumns = []string{
	"id", "category_id", "title", "body", "published_at", "publisher", "reporter", "article_url", "created_at", "deleted_at",
}

// ArticleStore is the durable article.Store.
type ArticleStore struct {
	db  DBExecutor
	now func() time.Time
}

var _ article.Store = (*ArticleStore)(nil)

// NewArticleStore creates a store over db.
func NewArticleStore(db DBExecutor) *ArticleStore {
	return &ArticleStore{db: db, now: time.Now}
}

func (s *ArticleStore) Save(ctx context.Context, a *article.Article) error {
	if a.URL == "" {
		return fmt.Errorf("article url must be non-empty")
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	cols := []string{"category_id", "title", "body", "published_at", "publisher", "reporter", "article_url", "created_at", "deleted_at"}
	vals := []any{a.CategoryID, a.Title, a.Body, a.PublishedAt, a.Publisher, a.Reporter, a.URL, a.CreatedAt, a.DeletedAt}
	if a.ID != 0 {
		cols = append(cols, "id")
		vals = append(vals, a.ID)
	}
	query, args, err := sq.Insert("articles").Columns(cols...).Values(vals...).Suffix("RETURNING id").ToSql()
	if err != nil {
		return err
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&a.ID); err != nil {
		if isUniqueConstraintErr(err) {
			return fmt.Errorf("insert article %s: %w", a.URL, ErrAlreadyExists)
		}
		return fmt.Errorf("insert article %s: %w", a.URL, err)
	}
	return nil
}

func (s *ArticleStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	query, args, err := sq.Select("1").From("articles").
		Where(sq.Eq{"article_url": url, "deleted_at": nil}).Limit(1).ToSql()
	if err != nil {
		return false, err
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("article exists %s: %w", url, err)
	}
	return true, nil
}

func (s *ArticleStore) FindByURL(ctx context.Context, url string) (*article.Article, error) {
	query, args, err := sq.Select(articleColumns...).From("articles").
		Where(sq.Eq{"article_url": url, "deleted_at": nil}).Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	var a article.Article
	var deleted sql.NullTime
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&a.ID, &a.CategoryID, &a.Title, &a.Body, &a.PublishedAt, &a.Publisher, &a.Reporter, &a.URL, &a.CreatedAt, &deleted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, article.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find article %s: %w", url, err)
	}
	if deleted.Valid {
		a.DeletedAt = &deleted.Time
	}
	return &a, nil
}

// SoftDelete marks the live article with url as deleted.
func (s *ArticleStore) SoftDelete(ctx context.Context, url string) error {
	query, args, err := sq.Update("articles").Set("deleted_at", s.now()).
		Where(sq.Eq{"article_url": url, "deleted_at": nil}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete article %s: %w", url, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return article.ErrNotFound
	}
	return nil
}
