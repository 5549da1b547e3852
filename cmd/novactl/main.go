package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/novaplataforma/nova/internal/academia"
	"github.com/novaplataforma/nova/internal/auth"
	"github.com/novaplataforma/nova/internal/db"
	"github.com/novaplataforma/nova/internal/migrations"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	cmd := os.Args[1]
	args := os.Args[2:]

	// hash não precisa de banco.
	if cmd == "hash" {
		if err := runHash(args); err != nil {
			log.Fatal().Err(err).Msg("falha ao gerar hash")
		}
		return
	}

	ctx := context.Background()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		log.Fatal().Msg("defina DB_DSN")
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar ao banco")
	}
	defer pool.Close()

	switch cmd {
	case "migrate":
		if err := runMigrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("falha ao aplicar migrações")
		}
	case "seed":
		if err := runSeed(ctx, pool, args); err != nil {
			log.Fatal().Err(err).Msg("falha ao popular base")
		}
	case "cursos":
		if err := runCursos(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("falha ao listar cursos")
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "novactl")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  novactl migrate")
	fmt.Fprintln(os.Stderr, "  novactl hash <senha>")
	fmt.Fprintln(os.Stderr, "  novactl seed [--usuarios 20] [--senha nova12345] [--semente 42]")
	fmt.Fprintln(os.Stderr, "  novactl cursos")
}

func runHash(args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return errors.New("informe exatamente uma senha")
	}
	hash, err := auth.Hash(args[0])
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func runMigrate(ctx context.Context, pool *pgxpool.Pool) error {
	aplicadas, err := migrations.Apply(ctx, pool)
	if err != nil {
		return err
	}
	if len(aplicadas) == 0 {
		log.Info().Msg("base já está atualizada")
		return nil
	}
	for _, nome := range aplicadas {
		log.Info().Str("migracao", nome).Msg("aplicada")
	}
	return nil
}

func runCursos(ctx context.Context, pool *pgxpool.Pool) error {
	cursos, err := academia.NewRepository(pool).ListCursos(ctx)
	if err != nil {
		return err
	}
	for _, g := range academia.Agrupar(cursos, nil, "", false) {
		fmt.Printf("%s (%d)\n", g.Categoria, len(g.Cursos))
		for _, c := range g.Cursos {
			fmt.Printf("  %-32s %s\n", c.Curso.Slug, c.Curso.Titulo)
		}
	}
	return nil
}

// cacheOpcional devolve um cliente Redis se REDIS_URL estiver definido.
func cacheOpcional() *redis.Client {
	raw := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if raw == "" {
		return nil
	}
	opts, err := redis.ParseURL(raw)
	if err != nil {
		log.Warn().Err(err).Msg("REDIS_URL inválido, cache não será invalidado")
		return nil
	}
	return redis.NewClient(opts)
}
