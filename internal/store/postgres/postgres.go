// Package postgres persists fragments and vectors in a pgvector-enabled
// Postgres table through bun, as an alternate store backend.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"normativa-rag/internal/config"
	"normativa-rag/internal/models"
)

type fragmentRow struct {
	bun.BaseModel `bun:"table:fragments,alias:f"`

	ID            int64     `bun:"id,pk,autoincrement"`
	FragmentID    string    `bun:"fragment_id,notnull"`
	DocumentID    string    `bun:"document_id,notnull"`
	Text          string    `bun:"text,notnull"`
	CharStart     int       `bun:"char_start,notnull"`
	CharEnd       int       `bun:"char_end,notnull"`
	SequenceIndex int       `bun:"sequence_index,notnull"`
	Embedding     []float32 `bun:"embedding,notnull,type:vector"`
	Score         float32   `bun:"score,scanonly"`
}

type Store struct {
	db        *bun.DB
	dimension int
}

func New(cfg *config.PostgresConfig) (*Store, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithPassword(cfg.Password),
	))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Init drops and recreates the fragments table with the given vector
// dimension. Rebuilds are full replaces.
func (s *Store) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	s.dimension = dimension
	if _, err := s.db.NewDropTable().Model((*fragmentRow)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("dropping fragments table: %w", err)
	}
	query := fmt.Sprintf(`CREATE TABLE fragments (
		id BIGSERIAL PRIMARY KEY,
		fragment_id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		text TEXT NOT NULL,
		char_start INTEGER NOT NULL,
		char_end INTEGER NOT NULL,
		sequence_index INTEGER NOT NULL,
		embedding vector(%d) NOT NULL
	)`, dimension)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("creating fragments table: %w", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, fragments []models.Fragment, vectors [][]float32) error {
	if len(fragments) != len(vectors) {
		return fmt.Errorf("%d fragments but %d vectors", len(fragments), len(vectors))
	}
	rows := make([]fragmentRow, len(fragments))
	for i, f := range fragments {
		rows[i] = fragmentRow{
			FragmentID:    f.ID,
			DocumentID:    f.DocumentID,
			Text:          f.Text,
			CharStart:     f.CharStart,
			CharEnd:       f.CharEnd,
			SequenceIndex: f.SequenceIndex,
			Embedding:     vectors[i],
		}
	}
	if _, err := s.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("inserting fragments: %w", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, topK int) ([]models.RetrievedFragment, error) {
	if topK < 1 {
		topK = 1
	}
	var rows []fragmentRow
	err := s.db.NewSelect().
		Model(&rows).
		Column("fragment_id", "document_id", "text", "char_start", "char_end", "sequence_index").
		ColumnExpr("1 - (embedding <=> ?) AS score", vector).
		OrderExpr("embedding <=> ?", vector).
		Limit(topK).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("searching fragments: %w", err)
	}

	results := make([]models.RetrievedFragment, len(rows))
	for i, r := range rows {
		results[i] = models.RetrievedFragment{
			Fragment: models.Fragment{
				ID:            r.FragmentID,
				DocumentID:    r.DocumentID,
				Text:          r.Text,
				CharStart:     r.CharStart,
				CharEnd:       r.CharEnd,
				SequenceIndex: r.SequenceIndex,
			},
			Score: r.Score,
		}
	}
	return results, nil
}
