package vectorstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/mrag/internal/config"
	"github.com/xxxsen/mrag/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// pgvectorStore ranks with the pgvector cosine distance operator (<=>).
type pgvectorStore struct {
	db         *sql.DB
	collection string
}

func init() {
	Register("pgvector", openPgvector)
}

func openPgvector(cfg config.VectorStoreConfig) (Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("vector_store.dsn is required for pgvector store")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &pgvectorStore{db: db, collection: cfg.Collection}, nil
}

func applyMigrations(db *sql.DB) error {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	for _, file := range files {
		content, err := fs.ReadFile(migrationsFS, "migrations/"+file)
		if err != nil {
			return err
		}
		for _, q := range strings.Split(string(content), ";") {
			q = strings.TrimSpace(q)
			if q == "" {
				continue
			}
			if _, err := db.Exec(q); err != nil {
				if strings.Contains(err.Error(), "already exists") {
					continue
				}
				return fmt.Errorf("execute query in %s: %w", file, err)
			}
		}
	}
	return nil
}

func (s *pgvectorStore) Add(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	query := sqlx.Rebind(sqlx.DOLLAR, `
		INSERT INTO rag_chunks (id, collection, document, metadata, embedding, ctime)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	now := time.Now().UnixMilli()
	for _, c := range chunks {
		md, err := json.Marshal(metadataOrEmpty(c.Metadata))
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID,
			s.collection,
			c.Document,
			string(md),
			pgvector.NewVector(c.Embedding),
			now,
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (s *pgvectorStore) Query(ctx context.Context, embedding []float32, k int) ([]model.Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	query := sqlx.Rebind(sqlx.DOLLAR, `
		SELECT document, metadata
		FROM rag_chunks
		WHERE collection = ?
		ORDER BY embedding <=> ?
		LIMIT ?
	`)
	rows, err := s.db.QueryContext(ctx, query, s.collection, pgvector.NewVector(embedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hits []model.Hit
	for rows.Next() {
		var doc string
		var mdBlob []byte
		if err := rows.Scan(&doc, &mdBlob); err != nil {
			return nil, err
		}
		var md map[string]string
		if err := json.Unmarshal(mdBlob, &md); err != nil {
			return nil, err
		}
		hits = append(hits, model.Hit{Document: doc, Metadata: md})
	}
	return hits, rows.Err()
}

func (s *pgvectorStore) Count(ctx context.Context) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM rag_chunks WHERE collection = $1`, s.collection)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *pgvectorStore) Close() error {
	return s.db.Close()
}
