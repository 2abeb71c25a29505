package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/didi/gendry/builder"
	_ "modernc.org/sqlite"

	"github.com/xxxsen/mrag/internal/config"
	"github.com/xxxsen/mrag/internal/model"
)

const (
	sqliteFile      = "collection.sqlite3"
	sqliteInsertMax = 200
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id         TEXT NOT NULL,
	collection TEXT NOT NULL,
	document   TEXT NOT NULL,
	metadata   TEXT NOT NULL,
	embedding  TEXT NOT NULL,
	ctime      INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
);
`

// sqliteStore persists the collection in a single sqlite file under cfg.Dir.
// Similarity is computed in process over the whole collection.
type sqliteStore struct {
	db         *sql.DB
	collection string
}

func init() {
	Register("sqlite", openSQLite)
}

func openSQLite(cfg config.VectorStoreConfig) (Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = config.DefaultChromaDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create vector store dir: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, sqliteFile))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, q := range strings.Split(sqliteSchema, ";") {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
	}
	return &sqliteStore{db: db, collection: cfg.Collection}, nil
}

func (s *sqliteStore) Add(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	rows := make([]map[string]interface{}, 0, len(chunks))
	for _, c := range chunks {
		md, err := json.Marshal(metadataOrEmpty(c.Metadata))
		if err != nil {
			return err
		}
		emb, err := json.Marshal(c.Embedding)
		if err != nil {
			return err
		}
		rows = append(rows, map[string]interface{}{
			"id":         c.ID,
			"collection": s.collection,
			"document":   c.Document,
			"metadata":   string(md),
			"embedding":  string(emb),
			"ctime":      now,
		})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for start := 0; start < len(rows); start += sqliteInsertMax {
		end := min(start+sqliteInsertMax, len(rows))
		sqlStr, args, err := builder.BuildInsert("chunks", rows[start:end])
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) Query(ctx context.Context, embedding []float32, k int) ([]model.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	where := map[string]interface{}{
		"collection": s.collection,
	}
	sqlStr, args, err := builder.BuildSelect("chunks", where, []string{"document", "metadata", "embedding"})
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []scored
	for rows.Next() {
		var doc, mdBlob, embBlob string
		if err := rows.Scan(&doc, &mdBlob, &embBlob); err != nil {
			return nil, err
		}
		var md map[string]string
		if err := json.Unmarshal([]byte(mdBlob), &md); err != nil {
			return nil, err
		}
		var emb []float32
		if err := json.Unmarshal([]byte(embBlob), &emb); err != nil {
			return nil, err
		}
		items = append(items, scored{
			hit:   model.Hit{Document: doc, Metadata: md},
			score: cosineSimilarity(embedding, emb),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topK(items, k), nil
}

func (s *sqliteStore) Count(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM chunks WHERE collection = ?", s.collection)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func metadataOrEmpty(md map[string]string) map[string]string {
	if md == nil {
		return map[string]string{}
	}
	return md
}
