package notificacao

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novaplataforma/nova/internal/db"
	"github.com/novaplataforma/nova/internal/repo"
)

const dbTimeout = 3 * time.Second

const (
	TipoConexaoSolicitada  = "conexao_solicitada"
	TipoConexaoAceita      = "conexao_aceita"
	TipoInteracaoRecebida  = "interacao_recebida"
	TipoInteracaoAprovada  = "interacao_aprovada"
	TipoInteracaoRejeitada = "interacao_rejeitada"
	TipoComentario         = "comentario"
	TipoReacao             = "reacao"
)

type Notificacao struct {
	ID             uuid.UUID  `json:"id"`
	RecebidoPor    uuid.UUID  `json:"recebido_por"`
	EnviadoPor     *uuid.UUID `json:"enviado_por,omitempty"`
	EnviadoPorNome *string    `json:"enviado_por_nome,omitempty"`
	EnviadoPorFoto *string    `json:"enviado_por_avatar,omitempty"`
	Tipo           string     `json:"tipo"`
	ReferenciaID   *uuid.UUID `json:"referencia_id,omitempty"`
	Mensagem       string     `json:"mensagem"`
	Lido           bool       `json:"lido"`
	CriadoEm       time.Time  `json:"criado_em"`
}

// Nova descreve uma notificação criada por outro módulo dentro da sua transação.
type Nova struct {
	RecebidoPor  uuid.UUID
	EnviadoPor   *uuid.UUID
	Tipo         string
	ReferenciaID *uuid.UUID
	Mensagem     string
}

// Insert grava a notificação usando a conexão ou transação do chamador.
func Insert(ctx context.Context, q db.Querier, n Nova) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.QueryRow(ctx, `
		INSERT INTO notificacoes (recebido_por, enviado_por, tipo, referencia_id, mensagem)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		n.RecebidoPor, n.EnviadoPor, n.Tipo, n.ReferenciaID, n.Mensagem,
	).Scan(&id)
	return id, err
}

// MarcarLidaPorReferencia fecha as notificações ligadas a um registro, como o
// pedido de conexão recusado.
func MarcarLidaPorReferencia(ctx context.Context, q db.Querier, recebidoPor uuid.UUID, tipo string, referenciaID uuid.UUID) error {
	_, err := q.Exec(ctx, `
		UPDATE notificacoes SET lido = true
		WHERE recebido_por = $1 AND tipo = $2 AND referencia_id = $3 AND NOT lido`,
		recebidoPor, tipo, referenciaID)
	return err
}

// Repository acessa a tabela notificacoes.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context, usuarioID uuid.UUID, limit, offset int) ([]Notificacao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT n.id, n.recebido_por, n.enviado_por, u.nome, u.avatar_url, n.tipo,
		       n.referencia_id, n.mensagem, n.lido, n.criado_em
		FROM notificacoes n
		LEFT JOIN usuarios u ON u.id = n.enviado_por
		WHERE n.recebido_por = $1
		ORDER BY n.criado_em DESC
		LIMIT $2 OFFSET $3`, usuarioID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Notificacao{}
	for rows.Next() {
		var n Notificacao
		if err := rows.Scan(&n.ID, &n.RecebidoPor, &n.EnviadoPor, &n.EnviadoPorNome, &n.EnviadoPorFoto,
			&n.Tipo, &n.ReferenciaID, &n.Mensagem, &n.Lido, &n.CriadoEm); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *Repository) CountUnread(ctx context.Context, usuarioID uuid.UUID) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var n int
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM notificacoes WHERE recebido_por = $1 AND NOT lido`, usuarioID).Scan(&n)
	return n, err
}

func (r *Repository) MarcarLida(ctx context.Context, usuarioID, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `UPDATE notificacoes SET lido = true WHERE id = $1 AND recebido_por = $2`, id, usuarioID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *Repository) MarcarTodasLidas(ctx context.Context, usuarioID uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `UPDATE notificacoes SET lido = true WHERE recebido_por = $1 AND NOT lido`, usuarioID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// PurgeLidas remove notificações já lidas criadas antes de limite.
func (r *Repository) PurgeLidas(ctx context.Context, limite time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM notificacoes WHERE lido AND criado_em < $1`, limite)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
