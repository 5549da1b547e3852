package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"
	"github.com/rs/zerolog/log"
)

//go:embed sql/*.sql
var files embed.FS

// Source devolve os scripts embutidos na raiz esperada pelo goose.
func Source() fs.FS {
	sub, err := fs.Sub(files, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// NewProvider monta o goose sobre o mesmo pool. O session locker usa advisory
// lock do Postgres, então réplicas subindo juntas aplicam cada script uma vez.
func NewProvider(pool *pgxpool.Pool) (*goose.Provider, error) {
	locker, err := lock.NewPostgresSessionLocker()
	if err != nil {
		return nil, fmt.Errorf("locker: %w", err)
	}
	return goose.NewProvider(goose.DialectPostgres, stdlib.OpenDBFromPool(pool), Source(),
		goose.WithSessionLocker(locker))
}

// Apply aplica os scripts pendentes e devolve os nomes aplicados nesta chamada.
func Apply(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	// sem provider.Close: o *sql.DB só empresta conexões do pool, que o chamador fecha
	provider, err := NewProvider(pool)
	if err != nil {
		return nil, err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose up: %w", err)
	}

	done := make([]string, 0, len(results))
	for _, res := range results {
		log.Info().Str("migration", res.Source.Path).Dur("duration", res.Duration).Msg("migração aplicada")
		done = append(done, res.Source.Path)
	}
	return done, nil
}
