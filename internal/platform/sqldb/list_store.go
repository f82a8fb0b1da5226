package sqldb

import (
	"context"
	"log/slog"

	"github.com/lingolab/vocab-srs/internal/store"
)

const (
	listExistsQuery = `SELECT COUNT(1) FROM vocabulary_lists WHERE id = ?`

	upsertListQuery = `INSERT INTO vocabulary_lists (id, title) VALUES (?, ?)
	ON CONFLICT (id) DO UPDATE SET title = excluded.title`
)

// ListStore implements store.ListStore over the vocabulary_lists table.
type ListStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewListStore creates a ListStore. It accepts a database connection or a
// transaction. If logger is nil, a default logger will be used.
func NewListStore(db store.DBTX, logger *slog.Logger) *ListStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ListStore{
		db:     db,
		logger: logger.With(slog.String("component", "list_store")),
	}
}

// Ensure ListStore implements store.ListStore interface
var _ store.ListStore = (*ListStore)(nil)

// Exists implements store.ListStore.Exists
func (s *ListStore) Exists(ctx context.Context, listID int64) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, s.db.Rebind(listExistsQuery), listID); err != nil {
		return false, store.NewStoreError("vocabulary_list", "exists", "query failed", MapError(err))
	}
	return count > 0, nil
}

// Register records a vocabulary list id so review records can refer to it.
// Registering an existing id updates its title.
func (s *ListStore) Register(ctx context.Context, listID int64, title string) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(upsertListQuery), listID, title); err != nil {
		return store.NewStoreError("vocabulary_list", "register", "statement failed", MapError(err))
	}
	s.logger.InfoContext(ctx, "vocabulary list registered", slog.Int64("list_id", listID))
	return nil
}
