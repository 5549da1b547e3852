package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/novaplataforma/nova/internal/db"
)

const dbTimeout = 3 * time.Second

const contadoresSQL = `
SELECT
    (SELECT count(*) FROM notificacoes WHERE recebido_por = $1 AND NOT lido),
    (SELECT count(*) FROM mensagens_privadas WHERE destinatario_id = $1 AND NOT visualizado)`

// Repository calcula os badges direto nas tabelas de origem.
type Repository struct {
	db db.Querier
}

func NewRepository(q db.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) Contadores(ctx context.Context, usuarioID uuid.UUID) (Contadores, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var c Contadores
	err := r.db.QueryRow(ctx, contadoresSQL, usuarioID).Scan(&c.Notificacoes, &c.Mensagens)
	return c, err
}
