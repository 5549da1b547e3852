package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/novaplataforma/nova/internal/db"
)

const passkeyColumns = `id, usuario_id, credential_id, public_key, sign_count, transports, aaguid, nickname, cloned, criado_em`

func scanPasskey(row pgx.Row) (Passkey, error) {
	var p Passkey
	err := row.Scan(&p.ID, &p.UsuarioID, &p.CredentialID, &p.PublicKey, &p.SignCount, &p.Transports,
		&p.AAGUID, &p.Nickname, &p.Cloned, &p.CriadoEm)
	if errors.Is(err, pgx.ErrNoRows) {
		return Passkey{}, ErrNotFound
	}
	return p, err
}

func (q *Queries) ListPasskeys(ctx context.Context, usuarioID uuid.UUID) ([]Passkey, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := q.pool.Query(ctx, `SELECT `+passkeyColumns+`
        FROM webauthn_credentials WHERE usuario_id = $1 ORDER BY criado_em`, usuarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Passkey
	for rows.Next() {
		p, err := scanPasskey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (q *Queries) GetPasskeyByCredentialID(ctx context.Context, credentialID []byte) (Passkey, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return scanPasskey(q.pool.QueryRow(ctx, `SELECT `+passkeyColumns+`
        FROM webauthn_credentials WHERE credential_id = $1`, credentialID))
}

func (q *Queries) CreatePasskey(ctx context.Context, arg CreatePasskeyParams) (Passkey, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	transports := arg.Transports
	if transports == nil {
		transports = []string{}
	}
	p, err := scanPasskey(q.pool.QueryRow(ctx, `
        INSERT INTO webauthn_credentials (usuario_id, credential_id, public_key, sign_count, transports, aaguid, nickname)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING `+passkeyColumns,
		arg.UsuarioID, arg.CredentialID, arg.PublicKey, arg.SignCount, transports, arg.AAGUID, arg.Nickname))
	if db.IsUniqueViolation(err) {
		return Passkey{}, ErrConflict
	}
	return p, err
}

// UpdatePasskeyCounter grava o contador de assinaturas após um login.
func (q *Queries) UpdatePasskeyCounter(ctx context.Context, id uuid.UUID, signCount int64, cloned bool) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	cmd, err := q.pool.Exec(ctx, `
        UPDATE webauthn_credentials SET sign_count = $2, cloned = $3, atualizado_em = now()
        WHERE id = $1`, id, signCount, cloned)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
