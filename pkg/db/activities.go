package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var activityColumns = []string{
	"id", "user_id", "article_id", "comparison_type", "user_answer", "ai_answer", "score", "created_at",
}

// ActivityStore reads and records scrap activities.
type ActivityStore struct {
	db  DBExecutor
	now func() time.Time
}

// NewActivityStore creates a store over db.
func NewActivityStore(db DBExecutor) *ActivityStore {
	return &ActivityStore{db: db, now: time.Now}
}

// Insert stores a and sets its ID.
func (s *ActivityStore) Insert(ctx context.Context, a *ScrapActivity) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	query, args, err := sq.Insert("scrap_activities").
		Columns(activityColumns[1:]...).
		Values(a.UserID, a.ArticleID, string(a.ComparisonType), a.UserAnswer, a.AIAnswer, a.Score, a.CreatedAt).
		Suffix("RETURNING id").ToSql()
	if err != nil {
		return err
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&a.ID); err != nil {
		return fmt.Errorf("insert scrap activity: %w", err)
	}
	return nil
}

// FindByID returns the activity with the given id.
func (s *ActivityStore) FindByID(ctx context.Context, id int64) (*ScrapActivity, error) {
	query, args, err := sq.Select(activityColumns...).From("scrap_activities").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var a ScrapActivity
	var ct string
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&a.ID, &a.UserID, &a.ArticleID, &ct, &a.UserAnswer, &a.AIAnswer, &a.Score, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find scrap activity %d: %w", id, err)
	}
	a.ComparisonType = ComparisonType(ct)
	return &a, nil
}
