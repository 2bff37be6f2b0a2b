package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var wordColumns = []string{
	"id", "word_name", "synonyms", "antonyms", "definition", "category", "shoulder_no", "example",
	"target_code", "sense_no", "created_at", "deleted_at",
}

// WordStore persists words under the sense-key and unkeyed-name unique indexes.
type WordStore struct {
	db  DBExecutor
	now func() time.Time
}

// NewWordStore creates a store over db.
func NewWordStore(db DBExecutor) *WordStore {
	return &WordStore{db: db, now: time.Now}
}

// FindByKey returns the live word with the given sense key.
func (s *WordStore) FindByKey(ctx context.Context, targetCode int64, senseNo int) (*Word, error) {
	return s.findOne(ctx, sq.Select(wordColumns...).From("words").
		Where(sq.Eq{"target_code": targetCode, "sense_no": senseNo, "deleted_at": nil}).
		Limit(1))
}

// FindByName returns the live word without a sense key that has the given name.
// Keyed rows are reachable only through FindByKey.
func (s *WordStore) FindByName(ctx context.Context, name string) (*Word, error) {
	return s.findOne(ctx, sq.Select(wordColumns...).From("words").
		Where(sq.Eq{"word_name": name, "deleted_at": nil}).
		Where(sq.Expr("NOT (target_code > 0 AND sense_no > 0)")).
		Limit(1))
}

// FindByID returns the word with the given id.
func (s *WordStore) FindByID(ctx context.Context, id int64) (*Word, error) {
	return s.findOne(ctx, sq.Select(wordColumns...).From("words").Where(sq.Eq{"id": id}))
}

// Insert stores w and sets its ID. A key collision yields ErrAlreadyExists.
func (s *WordStore) Insert(ctx context.Context, w *Word) error {
	name := strings.TrimSpace(w.Name)
	if name == "" {
		return fmt.Errorf("word name must be non-empty")
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = s.now()
	}
	query, args, err := sq.Insert("words").
		Columns("word_name", "synonyms", "antonyms", "definition", "category", "shoulder_no", "example",
			"target_code", "sense_no", "created_at").
		Values(name, w.Synonyms, w.Antonyms, w.Definition, w.Category, w.ShoulderNo, w.Example,
			w.TargetCode, w.SenseNo, w.CreatedAt).
		Suffix("RETURNING id").ToSql()
	if err != nil {
		return err
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&w.ID); err != nil {
		if isUniqueConstraintErr(err) {
			return fmt.Errorf("insert word %s: %w", name, ErrAlreadyExists)
		}
		return fmt.Errorf("insert word %s: %w", name, err)
	}
	w.Name = name
	return nil
}

// Update writes the given column changes, as produced by Word.Changes, to word id.
func (s *WordStore) Update(ctx context.Context, id int64, changes map[string]any) error {
	if id <= 0 {
		return fmt.Errorf("wordID must be positive")
	}
	if len(changes) == 0 {
		return nil
	}
	query, args, err := sq.Update("words").SetMap(changes).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueConstraintErr(err) {
			return fmt.Errorf("update word %d: %w", id, ErrAlreadyExists)
		}
		return fmt.Errorf("update word %d: %w", id, err)
	}
	return nil
}

func (s *WordStore) findOne(ctx context.Context, b sq.SelectBuilder) (*Word, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var w Word
	var deleted sql.NullTime
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&w.ID, &w.Name, &w.Synonyms, &w.Antonyms, &w.Definition, &w.Category, &w.ShoulderNo, &w.Example,
		&w.TargetCode, &w.SenseNo, &w.CreatedAt, &deleted,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query word: %w", err)
	}
	if deleted.Valid {
		w.DeletedAt = &deleted.Time
	}
	return &w, nil
}
