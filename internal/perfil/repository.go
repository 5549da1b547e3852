package perfil

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novaplataforma/nova/internal/db"
	"github.com/novaplataforma/nova/internal/repo"
)

const dbTimeout = 3 * time.Second

const perfilColumns = `id, nome, username, email, bio, avatar_url, verificado, premium,
       tipo_conta, objetivo, funcoes_interesse, onboarding_concluido, criado_em`

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanPerfil(row pgx.Row) (Perfil, error) {
	var p Perfil
	err := row.Scan(&p.ID, &p.Nome, &p.Username, &p.Email, &p.Bio, &p.AvatarURL, &p.Verificado, &p.Premium,
		&p.TipoConta, &p.Objetivo, &p.FuncoesInteresse, &p.OnboardingConcluido, &p.CriadoEm)
	if errors.Is(err, pgx.ErrNoRows) {
		return Perfil{}, repo.ErrNotFound
	}
	if p.FuncoesInteresse == nil {
		p.FuncoesInteresse = []string{}
	}
	return p, err
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Perfil, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return scanPerfil(r.db.QueryRow(ctx, `SELECT `+perfilColumns+` FROM usuarios WHERE id = $1 AND ativo`, id))
}

// Buscar procura por nome ou username, ignorando caixa.
func (r *Repository) Buscar(ctx context.Context, termo string, limit int) ([]Resumo, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	padrao := "%" + escapeLike(termo) + "%"
	rows, err := r.db.Query(ctx, `
		SELECT id, nome, username, avatar_url, verificado
		FROM usuarios
		WHERE ativo AND (nome ILIKE $1 OR username ILIKE $1)
		ORDER BY verificado DESC, nome
		LIMIT $2`, padrao, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Resumo{}
	for rows.Next() {
		var s Resumo
		if err := rows.Scan(&s.ID, &s.Nome, &s.Username, &s.AvatarURL, &s.Verificado); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) Atualizar(ctx context.Context, id uuid.UUID, in Atualizacao) (Perfil, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	p, err := scanPerfil(r.db.QueryRow(ctx, `
		UPDATE usuarios
		SET nome = $2, username = $3, bio = $4, atualizado_em = now()
		WHERE id = $1 AND ativo
		RETURNING `+perfilColumns, id, in.Nome, in.Username, in.Bio))
	if err != nil && db.IsUniqueViolation(err) {
		return Perfil{}, repo.ErrConflict
	}
	return p, err
}

// ConcluirOnboarding só grava enquanto onboarding_concluido for falso;
// uma segunda chamada devolve repo.ErrConflict.
func (r *Repository) ConcluirOnboarding(ctx context.Context, id uuid.UUID, in Onboarding) (Perfil, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	p, err := scanPerfil(r.db.QueryRow(ctx, `
		UPDATE usuarios
		SET tipo_conta = $2, objetivo = NULLIF($3, ''), funcoes_interesse = $4,
		    onboarding_concluido = true, atualizado_em = now()
		WHERE id = $1 AND ativo AND NOT onboarding_concluido
		RETURNING `+perfilColumns, id, in.TipoConta, in.Objetivo, in.FuncoesInteresse))
	if errors.Is(err, repo.ErrNotFound) {
		if _, getErr := r.Get(ctx, id); getErr == nil {
			return Perfil{}, repo.ErrConflict
		}
	}
	return p, err
}

func (r *Repository) AtualizarAvatar(ctx context.Context, id uuid.UUID, url string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `UPDATE usuarios SET avatar_url = $2, atualizado_em = now() WHERE id = $1 AND ativo`, id, url)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
