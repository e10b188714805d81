package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sevigo/graphwarden/internal/core"
)

// SymbolRecord is the durable row form of core.Symbol, scoped to one
// (repository, branch) pair.
type SymbolRecord struct {
	RepositoryID int64  `db:"repository_id"`
	Branch       string `db:"branch"`
	SymbolID     string `db:"symbol_id"`
	FilePath     string `db:"file_path"`
	Name         string `db:"name"`
	Kind         string `db:"kind"`
	Signature    string `db:"signature"`
	DocComment   string `db:"doc_comment"`
	BodyStart    int    `db:"body_start"`
	BodyEnd      int    `db:"body_end"`
}

// EdgeRecord is the durable row form of core.Edge.
type EdgeRecord struct {
	RepositoryID int64  `db:"repository_id"`
	Branch       string `db:"branch"`
	FromID       string `db:"from_id"`
	ToID         string `db:"to_id"`
	Kind         string `db:"kind"`
}

// ExistingReviewComment is a previously posted comment, looked up for
// dedup/path-validation and for the retriever's prior-examples query.
type ExistingReviewComment struct {
	DedupID    string   `db:"dedup_id"`
	Path       string   `db:"path"`
	Line       int      `db:"line"`
	Body       string   `db:"body"`
	Confidence *float64 `db:"confidence"`
	Signal     *string  `db:"signal"`
}

// GraphStore is the persistence surface the indexer, retriever and
// feedback recorder depend on, alongside the base Store.
//
//go:generate mockgen -destination=../../mocks/mock_graph_store.go -package=mocks github.com/sevigo/graphwarden/internal/storage GraphStore
type GraphStore interface {
	UpsertSymbols(ctx context.Context, symbols []SymbolRecord) error
	UpsertEdges(ctx context.Context, edges []EdgeRecord) error
	DeleteSymbolsForFile(ctx context.Context, repoID int64, branch, filePath string) error

	GetSnapshot(ctx context.Context, repoID int64, branch string) ([]byte, error)
	PutSnapshot(ctx context.Context, repoID int64, branch string, data []byte, symbolCount, edgeCount int) error

	UpsertEmbeddingPointer(ctx context.Context, repoID int64, branch, symbolID, vectorPoint string) error

	SaveReviewComments(ctx context.Context, repoFullName string, prNumber int, comments []core.ReviewComment, dedupIDs []string) error
	GetExistingComments(ctx context.Context, repoFullName string, prNumber int) ([]ExistingReviewComment, error)
	GetRatedComments(ctx context.Context, repoFullName string) ([]ExistingReviewComment, error)

	UpsertFeedbackSignal(ctx context.Context, signal core.FeedbackSignal) error
}

var _ GraphStore = (*postgresStore)(nil)

// UpsertSymbols bulk-upserts symbol rows, batched the same way UpsertFiles
// batches repository_files.
func (s *postgresStore) UpsertSymbols(ctx context.Context, symbols []SymbolRecord) error {
	if len(symbols) == 0 {
		return nil
	}
	const batchSize = 1000
	for i := 0; i < len(symbols); i += batchSize {
		end := min(i+batchSize, len(symbols))
		if err := s.upsertSymbolsBatch(ctx, symbols[i:end]); err != nil {
			return fmt.Errorf("failed to upsert symbols batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

func (s *postgresStore) upsertSymbolsBatch(ctx context.Context, batch []SymbolRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			_ = err
		}
	}()

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO symbols (repository_id, branch, symbol_id, file_path, name, kind, signature, doc_comment, body_start, body_end, updated_at)
		VALUES (:repository_id, :branch, :symbol_id, :file_path, :name, :kind, :signature, :doc_comment, :body_start, :body_end, NOW())
		ON CONFLICT (repository_id, branch, symbol_id)
		DO UPDATE SET file_path = EXCLUDED.file_path, name = EXCLUDED.name, kind = EXCLUDED.kind,
			signature = EXCLUDED.signature, doc_comment = EXCLUDED.doc_comment,
			body_start = EXCLUDED.body_start, body_end = EXCLUDED.body_end, updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare symbol upsert: %w", err)
	}
	defer stmt.Close()

	for _, sym := range batch {
		if _, err := stmt.ExecContext(ctx, sym); err != nil {
			return fmt.Errorf("failed to upsert symbol %s: %w", sym.SymbolID, err)
		}
	}
	return tx.Commit()
}

// UpsertEdges bulk-upserts edge rows, idempotent on exact duplicates per the
// graph's own addEdge invariant.
func (s *postgresStore) UpsertEdges(ctx context.Context, edges []EdgeRecord) error {
	if len(edges) == 0 {
		return nil
	}
	const batchSize = 1000
	for i := 0; i < len(edges); i += batchSize {
		end := min(i+batchSize, len(edges))
		if err := s.upsertEdgesBatch(ctx, edges[i:end]); err != nil {
			return fmt.Errorf("failed to upsert edges batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

func (s *postgresStore) upsertEdgesBatch(ctx context.Context, batch []EdgeRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			_ = err
		}
	}()

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO edges (repository_id, branch, from_id, to_id, kind)
		VALUES (:repository_id, :branch, :from_id, :to_id, :kind)
		ON CONFLICT (repository_id, branch, from_id, to_id, kind) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare edge upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.ExecContext(ctx, e); err != nil {
			return fmt.Errorf("failed to upsert edge %s->%s: %w", e.FromID, e.ToID, err)
		}
	}
	return tx.Commit()
}

// DeleteSymbolsForFile removes every symbol row for filePath and, in the
// same transaction, every edge row whose from_id or to_id is one of the
// deleted symbol ids.
func (s *postgresStore) DeleteSymbolsForFile(ctx context.Context, repoID int64, branch, filePath string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			_ = err
		}
	}()

	var ids []string
	if err := tx.SelectContext(ctx, &ids,
		`SELECT symbol_id FROM symbols WHERE repository_id = $1 AND branch = $2 AND file_path = $3`,
		repoID, branch, filePath); err != nil {
		return fmt.Errorf("failed to list symbols for file %s: %w", filePath, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM symbols WHERE repository_id = $1 AND branch = $2 AND file_path = $3`,
		repoID, branch, filePath); err != nil {
		return fmt.Errorf("failed to delete symbols for file %s: %w", filePath, err)
	}

	if len(ids) > 0 {
		query, args, err := sqlx.In(
			`DELETE FROM edges WHERE repository_id = ? AND branch = ? AND (from_id IN (?) OR to_id IN (?))`,
			repoID, branch, ids, ids)
		if err != nil {
			return fmt.Errorf("failed to build edge cleanup query: %w", err)
		}
		query = s.db.Rebind(query)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to clean up edges for file %s: %w", filePath, err)
		}
	}

	return tx.Commit()
}

// GetSnapshot returns the raw serialized graph bytes for (repoID, branch),
// or ErrNotFound if none has been written yet.
func (s *postgresStore) GetSnapshot(ctx context.Context, repoID int64, branch string) ([]byte, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data,
		`SELECT data FROM graph_snapshots WHERE repository_id = $1 AND branch = $2`, repoID, branch)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get graph snapshot for repo %d branch %s: %w", repoID, branch, err)
	}
	return data, nil
}

// PutSnapshot overwrites the stored snapshot for (repoID, branch).
func (s *postgresStore) PutSnapshot(ctx context.Context, repoID int64, branch string, data []byte, symbolCount, edgeCount int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graph_snapshots (repository_id, branch, data, symbol_count, edge_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (repository_id, branch)
		DO UPDATE SET data = EXCLUDED.data, symbol_count = EXCLUDED.symbol_count, edge_count = EXCLUDED.edge_count, updated_at = NOW()
	`, repoID, branch, data, symbolCount, edgeCount)
	if err != nil {
		return fmt.Errorf("failed to write graph snapshot for repo %d branch %s: %w", repoID, branch, err)
	}
	return nil
}

// UpsertEmbeddingPointer records that symbolID now has a vector stored at
// vectorPoint in the external vector index.
func (s *postgresStore) UpsertEmbeddingPointer(ctx context.Context, repoID int64, branch, symbolID, vectorPoint string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO symbol_embeddings (repository_id, branch, symbol_id, vector_point, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (repository_id, branch, symbol_id)
		DO UPDATE SET vector_point = EXCLUDED.vector_point, updated_at = NOW()
	`, repoID, branch, symbolID, vectorPoint)
	if err != nil {
		return fmt.Errorf("failed to record embedding pointer for %s: %w", symbolID, err)
	}
	return nil
}

// SaveReviewComments persists the comments actually posted to a PR, keyed
// by their content-addressed dedup id, so later reviews can validate
// against and deduplicate with them.
func (s *postgresStore) SaveReviewComments(ctx context.Context, repoFullName string, prNumber int, comments []core.ReviewComment, dedupIDs []string) error {
	if len(comments) != len(dedupIDs) {
		return fmt.Errorf("saveReviewComments: comments/dedupIDs length mismatch (%d vs %d)", len(comments), len(dedupIDs))
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			_ = err
		}
	}()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO review_comments (repo_full_name, pr_number, dedup_id, path, line, body, severity, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (repo_full_name, pr_number, dedup_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare review comment insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range comments {
		if _, err := stmt.ExecContext(ctx, repoFullName, prNumber, dedupIDs[i], c.Path, c.Line, c.Body, string(c.Severity), c.Confidence); err != nil {
			return fmt.Errorf("failed to save review comment on %s:%d: %w", c.Path, c.Line, err)
		}
	}
	return tx.Commit()
}

// GetExistingComments returns every comment previously posted on
// (repoFullName, prNumber), joined with its latest feedback signal if any,
// for path-validation/dedup.
func (s *postgresStore) GetExistingComments(ctx context.Context, repoFullName string, prNumber int) ([]ExistingReviewComment, error) {
	var rows []ExistingReviewComment
	err := s.db.SelectContext(ctx, &rows, `
		SELECT rc.dedup_id, rc.path, rc.line, rc.body, rc.confidence, rf.signal
		FROM review_comments rc
		LEFT JOIN review_feedback rf ON rf.comment_id = rc.dedup_id
		WHERE rc.repo_full_name = $1 AND rc.pr_number = $2
	`, repoFullName, prNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get existing comments for %s#%d: %w", repoFullName, prNumber, err)
	}
	return rows, nil
}

// GetRatedComments returns every comment in the repository that carries a
// feedback signal (accepted or rejected), for the retriever's prior/
// rejected-examples query.
func (s *postgresStore) GetRatedComments(ctx context.Context, repoFullName string) ([]ExistingReviewComment, error) {
	var rows []ExistingReviewComment
	err := s.db.SelectContext(ctx, &rows, `
		SELECT rc.dedup_id, rc.path, rc.line, rc.body, rc.confidence, rf.signal
		FROM review_comments rc
		JOIN review_feedback rf ON rf.comment_id = rc.dedup_id
		WHERE rc.repo_full_name = $1
	`, repoFullName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rated comments for %s: %w", repoFullName, err)
	}
	return rows, nil
}

// UpsertFeedbackSignal records the most recent signal for a comment,
// overwriting any prior one (the newest click always wins).
func (s *postgresStore) UpsertFeedbackSignal(ctx context.Context, signal core.FeedbackSignal) error {
	createdAt := signal.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO review_feedback (comment_id, signal, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (comment_id) DO UPDATE SET signal = EXCLUDED.signal, created_at = EXCLUDED.created_at
	`, signal.CommentID, string(signal.Signal), createdAt)
	if err != nil {
		return fmt.Errorf("failed to upsert feedback signal for %s: %w", signal.CommentID, err)
	}
	return nil
}
