package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// WordbookStore persists wordbooks and their word mappings.
type WordbookStore struct {
	db  DBExecutor
	now func() time.Time
}

// NewWordbookStore creates a store over db.
func NewWordbookStore(db DBExecutor) *WordbookStore {
	return &WordbookStore{db: db, now: time.Now}
}

// FindByUser returns the id of the user's wordbook, or ErrNotFound.
func (s *WordbookStore) FindByUser(ctx context.Context, userID int64) (int64, error) {
	query, args, err := sq.Select("id").From("wordbooks").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("query wordbook for user %d: %w", userID, err)
	}
	return id, nil
}

// GetOrCreate returns the user's wordbook id, creating the wordbook when missing.
// Concurrent callers for the same user converge on one row via the user_id unique constraint.
func (s *WordbookStore) GetOrCreate(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("userID must be positive")
	}
	id, err := s.FindByUser(ctx, userID)
	if !errors.Is(err, ErrNotFound) {
		return id, err
	}

	query, args, err := sq.Insert("wordbooks").
		Columns("user_id", "created_at").
		Values(userID, s.now()).
		Suffix("ON CONFLICT(user_id) DO NOTHING").ToSql()
	if err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("create wordbook for user %d: %w", userID, err)
	}
	return s.FindByUser(ctx, userID)
}

// AddWord links wordID into wordbookID. It reports whether a new mapping was created.
func (s *WordbookStore) AddWord(ctx context.Context, wordbookID, wordID int64) (bool, error) {
	if wordbookID <= 0 {
		return false, fmt.Errorf("wordbookID must be positive")
	}
	if wordID <= 0 {
		return false, fmt.Errorf("wordID must be positive")
	}
	query, args, err := sq.Insert("wordbook_words").
		Columns("wordbook_id", "word_id", "created_at").
		Values(wordbookID, wordID, s.now()).
		Suffix("ON CONFLICT(wordbook_id, word_id) DO NOTHING").ToSql()
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("link word %d to wordbook %d: %w", wordID, wordbookID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// WordIDs returns the ids of words in a wordbook in insertion order.
func (s *WordbookStore) WordIDs(ctx context.Context, wordbookID int64) ([]int64, error) {
	query, args, err := sq.Select("word_id").From("wordbook_words").
		Where(sq.Eq{"wordbook_id": wordbookID}).OrderBy("rowid").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wordbook %d: %w", wordbookID, err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
