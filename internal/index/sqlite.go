package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"
)

// SQLiteIndex implements Index using SQLite.
// Vectors are stored as little-endian BLOBs and similarity search is performed
// in application memory using cosine similarity, which suits the corpus sizes
// of a single project (< 10K records).
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex opens the SQLite database at dbPath (a file path or ":memory:")
// and verifies connectivity with a ping.
func NewSQLiteIndex(ctx context.Context, dbPath string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteIndex{db: db}, nil
}

// InitSchema creates the vectors table if it doesn't exist.
func (s *SQLiteIndex) InitSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS vectors (
			namespace TEXT NOT NULL,
			id TEXT NOT NULL,
			embedding BLOB,
			metadata TEXT NOT NULL DEFAULT '{}',
			updated_at TEXT DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (namespace, id)
		);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Upsert stores rec under namespace, replacing any previous record with the same id.
func (s *SQLiteIndex) Upsert(ctx context.Context, namespace string, rec Record) error {
	meta, err := encodeMetadata(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `
		INSERT INTO vectors (namespace, id, embedding, metadata)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, id) DO UPDATE SET
			embedding = excluded.embedding,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := s.db.ExecContext(ctx, query, namespace, rec.ID, encodeVector(rec.Vector), string(meta)); err != nil {
		return unavailable("upsert vector", err)
	}
	return nil
}

// Query ranks every record of namespace against vector and returns the top k.
// Records whose dimension differs from the query are skipped.
func (s *SQLiteIndex) Query(ctx context.Context, namespace string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}

	query := `
		SELECT id, embedding, metadata
		FROM vectors
		WHERE namespace = ? AND embedding IS NOT NULL
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, namespace)
	if err != nil {
		return nil, unavailable("query vectors", err)
	}
	defer rows.Close()

	var results []Match
	for rows.Next() {
		var (
			id       string
			blob     []byte
			metaText string
		)
		if err := rows.Scan(&id, &blob, &metaText); err != nil {
			return nil, unavailable("scan vector", err)
		}

		stored := decodeVector(blob)
		if len(stored) == 0 || len(stored) != len(vector) {
			continue
		}

		meta, err := decodeMetadata([]byte(metaText))
		if err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", id, err)
		}

		results = append(results, Match{ID: id, Score: cosineSimilarity(vector, stored), Metadata: meta})
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate vectors", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	// Return top-k results
	return results[:min(k, len(results))], nil
}

// Fetch returns the record stored under id.
func (s *SQLiteIndex) Fetch(ctx context.Context, namespace, id string) (*Record, error) {
	var (
		blob     []byte
		metaText string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT embedding, metadata FROM vectors WHERE namespace = ? AND id = ?`,
		namespace, id,
	).Scan(&blob, &metaText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", namespace, id, ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("fetch vector", err)
	}

	meta, err := decodeMetadata([]byte(metaText))
	if err != nil {
		return nil, fmt.Errorf("failed to decode metadata for %s: %w", id, err)
	}
	return &Record{ID: id, Vector: decodeVector(blob), Metadata: meta}, nil
}

// Delete removes ids from namespace.
func (s *SQLiteIndex) Delete(ctx context.Context, namespace string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin delete", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE namespace = ? AND id = ?`, namespace, id); err != nil {
			return unavailable("delete vector", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit delete", err)
	}
	return nil
}

// Close releases the database connection.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

var _ Index = (*SQLiteIndex)(nil)
