package mensagem

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novaplataforma/nova/internal/repo"
)

const dbTimeout = 3 * time.Second

// Repository acessa mensagens_privadas.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) UsuarioAtivo(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var ok bool
	err := r.db.QueryRow(ctx, `SELECT true FROM usuarios WHERE id = $1 AND ativo`, id).Scan(&ok)
	if errors.Is(err, pgx.ErrNoRows) {
		return repo.ErrNotFound
	}
	return err
}

func (r *Repository) Insert(ctx context.Context, remetente, destinatario uuid.UUID, conteudo string) (Mensagem, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	m := Mensagem{RemetenteID: remetente, DestinatarioID: destinatario, Conteudo: conteudo}
	err := r.db.QueryRow(ctx, `
		INSERT INTO mensagens_privadas (remetente_id, destinatario_id, conteudo)
		VALUES ($1, $2, $3)
		RETURNING id, visualizado, criado_em`, remetente, destinatario, conteudo,
	).Scan(&m.ID, &m.Visualizado, &m.CriadoEm)
	return m, err
}

// Conversa devolve até limit mensagens anteriores a antes, da mais nova para a mais antiga.
func (r *Repository) Conversa(ctx context.Context, usuario, outro uuid.UUID, limit int, antes time.Time) ([]Mensagem, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, remetente_id, destinatario_id, conteudo, visualizado, criado_em
		FROM mensagens_privadas
		WHERE ((remetente_id = $1 AND destinatario_id = $2) OR (remetente_id = $2 AND destinatario_id = $1))
		  AND criado_em < $3
		ORDER BY criado_em DESC
		LIMIT $4`, usuario, outro, antes, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Mensagem{}
	for rows.Next() {
		var m Mensagem
		if err := rows.Scan(&m.ID, &m.RemetenteID, &m.DestinatarioID, &m.Conteudo, &m.Visualizado, &m.CriadoEm); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) MarcarVisualizadas(ctx context.Context, destinatario, remetente uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE mensagens_privadas SET visualizado = true
		WHERE destinatario_id = $1 AND remetente_id = $2 AND NOT visualizado`, destinatario, remetente)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repository) Conversas(ctx context.Context, usuario uuid.UUID) ([]Conversa, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		WITH ultimas AS (
		    SELECT DISTINCT ON (parceiro) *
		    FROM (
		        SELECT m.*, CASE WHEN m.remetente_id = $1 THEN m.destinatario_id ELSE m.remetente_id END AS parceiro
		        FROM mensagens_privadas m
		        WHERE m.remetente_id = $1 OR m.destinatario_id = $1
		    ) t
		    ORDER BY parceiro, criado_em DESC
		)
		SELECT u.id, u.nome, u.avatar_url,
		       l.id, l.remetente_id, l.destinatario_id, l.conteudo, l.visualizado, l.criado_em,
		       (SELECT count(*) FROM mensagens_privadas x
		         WHERE x.destinatario_id = $1 AND x.remetente_id = l.parceiro AND NOT x.visualizado)
		FROM ultimas l
		JOIN usuarios u ON u.id = l.parceiro
		ORDER BY l.criado_em DESC`, usuario)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Conversa{}
	for rows.Next() {
		var c Conversa
		m := &c.Ultima
		if err := rows.Scan(&c.ParceiroID, &c.ParceiroNome, &c.ParceiroAvatar,
			&m.ID, &m.RemetenteID, &m.DestinatarioID, &m.Conteudo, &m.Visualizado, &m.CriadoEm, &c.NaoLidas); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) CountUnread(ctx context.Context, usuario uuid.UUID) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM mensagens_privadas WHERE destinatario_id = $1 AND NOT visualizado`, usuario).Scan(&n)
	return n, err
}
