package formulario

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/novaplataforma/nova/internal/db"
	"github.com/novaplataforma/nova/internal/repo"
)

const dbTimeout = 3 * time.Second

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) List(ctx context.Context) ([]Formulario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, titulo, descricao, ativo, prazo, criado_em
		FROM formularios
		WHERE ativo
		ORDER BY criado_em DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Formulario{}
	for rows.Next() {
		var f Formulario
		if err := rows.Scan(&f.ID, &f.Titulo, &f.Descricao, &f.Ativo, &f.Prazo, &f.CriadoEm); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Get carrega o formulário com as perguntas em ordem.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Formulario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var f Formulario
	err := r.db.QueryRow(ctx, `
		SELECT id, titulo, descricao, ativo, prazo, criado_em
		FROM formularios WHERE id = $1`, id,
	).Scan(&f.ID, &f.Titulo, &f.Descricao, &f.Ativo, &f.Prazo, &f.CriadoEm)
	if errors.Is(err, pgx.ErrNoRows) {
		return Formulario{}, repo.ErrNotFound
	}
	if err != nil {
		return Formulario{}, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, formulario_id, ordem, enunciado, tipo_selecao, opcoes, obrigatoria
		FROM perguntas
		WHERE formulario_id = $1
		ORDER BY ordem, id`, id)
	if err != nil {
		return Formulario{}, err
	}
	defer rows.Close()

	f.Perguntas = []Pergunta{}
	for rows.Next() {
		var p Pergunta
		if err := rows.Scan(&p.ID, &p.FormularioID, &p.Ordem, &p.Enunciado, &p.TipoSelecao, &p.Opcoes, &p.Obrigatoria); err != nil {
			return Formulario{}, err
		}
		f.Perguntas = append(f.Perguntas, p)
	}
	return f, rows.Err()
}

// SalvarRespostas grava todas as respostas numa transação; reenvio substitui.
func (r *Repository) SalvarRespostas(ctx context.Context, respostas []Resposta) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rs := range respostas {
			batch.Queue(`
				INSERT INTO respostas (formulario_id, pergunta_id, usuario_id, valor, arquivo_url)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (pergunta_id, usuario_id)
				DO UPDATE SET valor = EXCLUDED.valor, arquivo_url = EXCLUDED.arquivo_url, criado_em = now()`,
				rs.FormularioID, rs.PerguntaID, rs.UsuarioID, rs.Valor, rs.ArquivoURL)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return 0, err
	}
	return len(respostas), nil
}

func (r *Repository) MinhasRespostas(ctx context.Context, formularioID, usuarioID uuid.UUID) ([]Resposta, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT rs.id, rs.formulario_id, rs.pergunta_id, rs.usuario_id, rs.valor, rs.arquivo_url, rs.criado_em
		FROM respostas rs
		JOIN perguntas p ON p.id = rs.pergunta_id
		WHERE rs.formulario_id = $1 AND rs.usuario_id = $2
		ORDER BY p.ordem`, formularioID, usuarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Resposta{}
	for rows.Next() {
		var rs Resposta
		if err := rows.Scan(&rs.ID, &rs.FormularioID, &rs.PerguntaID, &rs.UsuarioID, &rs.Valor, &rs.ArquivoURL, &rs.CriadoEm); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// Criar grava o formulário com as perguntas na ordem recebida.
func (r *Repository) Criar(ctx context.Context, f Formulario) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var id uuid.UUID
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			INSERT INTO formularios (titulo, descricao, ativo, prazo)
			VALUES ($1, $2, $3, $4)
			RETURNING id`, f.Titulo, f.Descricao, f.Ativo, f.Prazo).Scan(&id); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i, p := range f.Perguntas {
			opcoes := p.Opcoes
			if opcoes == nil {
				opcoes = []string{}
			}
			batch.Queue(`
				INSERT INTO perguntas (formulario_id, ordem, enunciado, tipo_selecao, opcoes, obrigatoria)
				VALUES ($1, $2, $3, $4, $5, $6)`, id, i+1, p.Enunciado, p.TipoSelecao, opcoes, p.Obrigatoria)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	return id, err
}
