package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novaplataforma/nova/internal/db"
)

const dbTimeout = 3 * time.Second

const usuarioColumns = `id, nome, username, email, senha_hash, bio, avatar_url, verificado, premium,
       tipo_conta, objetivo, funcoes_interesse, onboarding_concluido, ativo, criado_em`

// Queries concentra o acesso a usuários e sessões.
type Queries struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

func scanUsuario(row pgx.Row) (Usuario, error) {
	var u Usuario
	err := row.Scan(&u.ID, &u.Nome, &u.Username, &u.Email, &u.SenhaHash, &u.Bio, &u.AvatarURL,
		&u.Verificado, &u.Premium, &u.TipoConta, &u.Objetivo, &u.FuncoesInteresse,
		&u.OnboardingConcluido, &u.Ativo, &u.CriadoEm)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Usuario{}, ErrNotFound
		}
		return Usuario{}, err
	}
	if u.FuncoesInteresse == nil {
		u.FuncoesInteresse = []string{}
	}
	return u, nil
}

func (q *Queries) GetUsuarioByEmail(ctx context.Context, email string) (Usuario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	row := q.pool.QueryRow(ctx, `SELECT `+usuarioColumns+` FROM usuarios WHERE email = $1`, strings.ToLower(strings.TrimSpace(email)))
	return scanUsuario(row)
}

func (q *Queries) GetUsuarioByID(ctx context.Context, id uuid.UUID) (Usuario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	row := q.pool.QueryRow(ctx, `SELECT `+usuarioColumns+` FROM usuarios WHERE id = $1`, id)
	return scanUsuario(row)
}

func (q *Queries) CreateUsuario(ctx context.Context, arg CreateUsuarioParams) (Usuario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	row := q.pool.QueryRow(ctx, `
        INSERT INTO usuarios (nome, email, senha_hash)
        VALUES ($1, $2, $3)
        RETURNING `+usuarioColumns, arg.Nome, strings.ToLower(strings.TrimSpace(arg.Email)), arg.SenhaHash)
	u, err := scanUsuario(row)
	if err != nil && db.IsUniqueViolation(err) {
		return Usuario{}, ErrConflict
	}
	return u, err
}

func (q *Queries) UpdateSenhaHash(ctx context.Context, id uuid.UUID, hash string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	_, err := q.pool.Exec(ctx, `UPDATE usuarios SET senha_hash = $2, atualizado_em = now() WHERE id = $1`, id, hash)
	return err
}

func (q *Queries) InsertRefreshToken(ctx context.Context, arg InsertRefreshTokenParams) (TokenRefresh, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	var t TokenRefresh
	err := q.pool.QueryRow(ctx, `
        INSERT INTO tokens_refresh (id, subject, audience, token_hash, expiracao, criado_em)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, subject, audience, token_hash, expiracao, criado_em, revogado
    `, arg.ID, arg.Subject, arg.Audience, arg.TokenHash, arg.Expiracao, arg.CriadoEm).
		Scan(&t.ID, &t.Subject, &t.Audience, &t.TokenHash, &t.Expiracao, &t.CriadoEm, &t.Revogado)
	return t, err
}

func (q *Queries) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (TokenRefresh, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	var t TokenRefresh
	err := q.pool.QueryRow(ctx, `
        SELECT id, subject, audience, token_hash, expiracao, criado_em, revogado
        FROM tokens_refresh WHERE token_hash = $1
    `, tokenHash).Scan(&t.ID, &t.Subject, &t.Audience, &t.TokenHash, &t.Expiracao, &t.CriadoEm, &t.Revogado)
	if errors.Is(err, pgx.ErrNoRows) {
		return TokenRefresh{}, ErrNotFound
	}
	return t, err
}

func (q *Queries) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	cmd, err := q.pool.Exec(ctx, `UPDATE tokens_refresh SET revogado = true WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpiredRefreshTokens remove sessões vencidas ou revogadas há mais de um dia.
func (q *Queries) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	cmd, err := q.pool.Exec(ctx, `
        DELETE FROM tokens_refresh
        WHERE expiracao < $1 OR (revogado AND criado_em < $1 - interval '1 day')
    `, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
