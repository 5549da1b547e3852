package conexao

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novaplataforma/nova/internal/db"
	"github.com/novaplataforma/nova/internal/notificacao"
	"github.com/novaplataforma/nova/internal/repo"
)

const dbTimeout = 3 * time.Second

const conexaoColumns = `id, solicitante_id, receptor_id, status, criado_em, atualizado_em`

// Repository persiste conexões e as notificações que as acompanham.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanConexao(row pgx.Row) (Conexao, error) {
	var c Conexao
	err := row.Scan(&c.ID, &c.SolicitanteID, &c.ReceptorID, &c.Status, &c.CriadoEm, &c.AtualizadoEm)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conexao{}, repo.ErrNotFound
	}
	return c, err
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Conexao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return scanConexao(r.db.QueryRow(ctx, `SELECT `+conexaoColumns+` FROM conexoes WHERE id = $1`, id))
}

// BuscarPar procura o vínculo do par sem considerar a direção.
func (r *Repository) BuscarPar(ctx context.Context, a, b uuid.UUID) (*Conexao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := scanConexao(r.db.QueryRow(ctx, `
		SELECT `+conexaoColumns+` FROM conexoes
		WHERE (solicitante_id = $1 AND receptor_id = $2) OR (solicitante_id = $2 AND receptor_id = $1)`, a, b))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) NomeUsuario(ctx context.Context, id uuid.UUID) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var nome string
	err := r.db.QueryRow(ctx, `SELECT nome FROM usuarios WHERE id = $1 AND ativo`, id).Scan(&nome)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", repo.ErrNotFound
	}
	return nome, err
}

// Criar insere o pedido e a notificação ao receptor na mesma transação.
func (r *Repository) Criar(ctx context.Context, solicitante, receptor uuid.UUID, aviso notificacao.Nova) (Conexao, uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var c Conexao
	var notifID uuid.UUID
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		c, err = scanConexao(tx.QueryRow(ctx, `
			INSERT INTO conexoes (solicitante_id, receptor_id, status)
			VALUES ($1, $2, 'pendente')
			RETURNING `+conexaoColumns, solicitante, receptor))
		if err != nil {
			if db.IsUniqueViolation(err) {
				return repo.ErrConflict
			}
			return err
		}
		aviso.ReferenciaID = &c.ID
		notifID, err = notificacao.Insert(ctx, tx, aviso)
		return err
	})
	return c, notifID, err
}

// Aprovar só altera pedidos ainda pendentes; zero linhas vira ErrNaoPendente.
func (r *Repository) Aprovar(ctx context.Context, id uuid.UUID, aviso notificacao.Nova) (Conexao, uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var c Conexao
	var notifID uuid.UUID
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		c, err = scanConexao(tx.QueryRow(ctx, `
			UPDATE conexoes SET status = 'aprovado', atualizado_em = now()
			WHERE id = $1 AND status = 'pendente'
			RETURNING `+conexaoColumns, id))
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNaoPendente
		}
		if err != nil {
			return err
		}
		// o convite deixa de ser pendência na caixa do receptor
		if err := notificacao.MarcarLidaPorReferencia(ctx, tx, c.ReceptorID, notificacao.TipoConexaoSolicitada, c.ID); err != nil {
			return err
		}
		aviso.ReferenciaID = &c.ID
		notifID, err = notificacao.Insert(ctx, tx, aviso)
		return err
	})
	return c, notifID, err
}

// DescartarPendente apaga o pedido pendente (recusado ou cancelado) e fecha
// a notificação do convite.
func (r *Repository) DescartarPendente(ctx context.Context, c Conexao) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	return db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM conexoes WHERE id = $1 AND status = 'pendente'`, c.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNaoPendente
		}
		return notificacao.MarcarLidaPorReferencia(ctx, tx, c.ReceptorID, notificacao.TipoConexaoSolicitada, c.ID)
	})
}

// Remover apaga o vínculo se ainda estiver no status esperado; se outro
// pedido já o removeu, devolve repo.ErrNotFound.
func (r *Repository) Remover(ctx context.Context, id uuid.UUID, status string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM conexoes WHERE id = $1 AND status = $2`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *Repository) ListPendentes(ctx context.Context, receptor uuid.UUID) ([]Pedido, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.criado_em, u.id, u.nome, u.username, u.avatar_url, u.tipo_conta
		FROM conexoes c
		JOIN usuarios u ON u.id = c.solicitante_id
		WHERE c.receptor_id = $1 AND c.status = 'pendente'
		ORDER BY c.criado_em DESC`, receptor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Pedido{}
	for rows.Next() {
		var p Pedido
		if err := rows.Scan(&p.ConexaoID, &p.CriadoEm, &p.Solicitante.ID, &p.Solicitante.Nome,
			&p.Solicitante.Username, &p.Solicitante.AvatarURL, &p.Solicitante.TipoConta); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) ListConexoes(ctx context.Context, usuario uuid.UUID) ([]Contato, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT u.id, u.nome, u.username, u.avatar_url, u.tipo_conta, u.funcoes_interesse, c.id, c.atualizado_em
		FROM conexoes c
		JOIN usuarios u ON u.id = CASE WHEN c.solicitante_id = $1 THEN c.receptor_id ELSE c.solicitante_id END
		WHERE (c.solicitante_id = $1 OR c.receptor_id = $1) AND c.status = 'aprovado'
		ORDER BY u.nome`, usuario)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Contato{}
	for rows.Next() {
		var (
			ct        Contato
			conexaoID uuid.UUID
			desde     time.Time
		)
		if err := rows.Scan(&ct.ID, &ct.Nome, &ct.Username, &ct.AvatarURL, &ct.TipoConta, &ct.FuncoesInteresse, &conexaoID, &desde); err != nil {
			return nil, err
		}
		ct.ConexaoID = &conexaoID
		ct.Desde = &desde
		out = append(out, ct)
	}
	return out, rows.Err()
}

// Sugestoes lista usuários com interesses em comum e sem vínculo algum.
func (r *Repository) Sugestoes(ctx context.Context, usuario uuid.UUID, limit int) ([]Contato, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		WITH eu AS (
		    SELECT ARRAY(SELECT lower(trim(x)) FROM unnest(funcoes_interesse) AS x) AS interesses
		    FROM usuarios WHERE id = $1
		)
		SELECT u.id, u.nome, u.username, u.avatar_url, u.tipo_conta, u.funcoes_interesse
		FROM usuarios u, eu
		WHERE u.id <> $1 AND u.ativo
		  AND ARRAY(SELECT lower(trim(x)) FROM unnest(u.funcoes_interesse) AS x) && eu.interesses
		  AND NOT EXISTS (
		      SELECT 1 FROM conexoes c
		      WHERE (c.solicitante_id = $1 AND c.receptor_id = u.id)
		         OR (c.solicitante_id = u.id AND c.receptor_id = $1)
		  )
		ORDER BY u.verificado DESC, u.criado_em DESC
		LIMIT $2`, usuario, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Contato{}
	for rows.Next() {
		var ct Contato
		if err := rows.Scan(&ct.ID, &ct.Nome, &ct.Username, &ct.AvatarURL, &ct.TipoConta, &ct.FuncoesInteresse); err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}
