package academia

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

const cursoColumns = `id, slug, titulo, descricao, COALESCE(categoria, ''), nivel, capa_url, tags, destaque, criado_em`

func scanCurso(row pgx.Row) (Curso, error) {
	var c Curso
	err := row.Scan(&c.ID, &c.Slug, &c.Titulo, &c.Descricao, &c.Categoria, &c.Nivel, &c.CapaURL, &c.Tags, &c.Destaque, &c.CriadoEm)
	return c, err
}

func (r *Repository) ListCursos(ctx context.Context) ([]Curso, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `SELECT `+cursoColumns+` FROM cursos_academia ORDER BY destaque DESC, titulo`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cursos := []Curso{}
	for rows.Next() {
		c, err := scanCurso(rows)
		if err != nil {
			return nil, err
		}
		cursos = append(cursos, c)
	}
	return cursos, rows.Err()
}

func (r *Repository) GetCurso(ctx context.Context, slug string) (Curso, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c, err := scanCurso(r.db.QueryRow(ctx, `SELECT `+cursoColumns+` FROM cursos_academia WHERE slug = $1`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return Curso{}, repo.ErrNotFound
	}
	return c, err
}

// ListAulas traz as aulas do curso com a marcação de concluída para usuarioID.
func (r *Repository) ListAulas(ctx context.Context, cursoID, usuarioID uuid.UUID) ([]Aula, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.curso_id, a.ordem, a.titulo, a.conteudo, a.video_url, a.duracao_min,
		       p.aula_id IS NOT NULL
		FROM aulas_academia a
		LEFT JOIN progresso_aulas p ON p.aula_id = a.id AND p.usuario_id = $2
		WHERE a.curso_id = $1
		ORDER BY a.ordem, a.titulo`, cursoID, usuarioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	aulas := []Aula{}
	for rows.Next() {
		var a Aula
		if err := rows.Scan(&a.ID, &a.CursoID, &a.Ordem, &a.Titulo, &a.Conteudo, &a.VideoURL, &a.DuracaoMin, &a.Concluida); err != nil {
			return nil, err
		}
		aulas = append(aulas, a)
	}
	return aulas, rows.Err()
}

// ConcluirAula grava o progresso; repetir a chamada não altera a data original.
func (r *Repository) ConcluirAula(ctx context.Context, usuarioID, aulaID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var existe bool
	err := r.db.QueryRow(ctx, `SELECT true FROM aulas_academia WHERE id = $1`, aulaID).Scan(&existe)
	if errors.Is(err, pgx.ErrNoRows) {
		return repo.ErrNotFound
	}
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO progresso_aulas (usuario_id, aula_id)
		VALUES ($1, $2)
		ON CONFLICT (usuario_id, aula_id) DO NOTHING`, usuarioID, aulaID)
	return err
}

func (r *Repository) Perfil(ctx context.Context, usuarioID uuid.UUID) (Perfil, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var p Perfil
	err := r.db.QueryRow(ctx, `
		SELECT funcoes_interesse, COALESCE(objetivo, '')
		FROM usuarios WHERE id = $1`, usuarioID).Scan(&p.Interesses, &p.Objetivo)
	if errors.Is(err, pgx.ErrNoRows) {
		return Perfil{}, repo.ErrNotFound
	}
	return p, err
}

// SalvarCurso grava o curso pelo slug e substitui a grade de aulas.
func (r *Repository) SalvarCurso(ctx context.Context, c Curso, aulas []Aula) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var id uuid.UUID
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO cursos_academia (slug, titulo, descricao, categoria, nivel, capa_url, tags, destaque)
			VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
			ON CONFLICT (slug) DO UPDATE
			SET titulo = EXCLUDED.titulo, descricao = EXCLUDED.descricao, categoria = EXCLUDED.categoria,
			    nivel = EXCLUDED.nivel, capa_url = EXCLUDED.capa_url, tags = EXCLUDED.tags, destaque = EXCLUDED.destaque
			RETURNING id`,
			c.Slug, c.Titulo, c.Descricao, c.Categoria, c.Nivel, c.CapaURL, c.Tags, c.Destaque,
		).Scan(&id)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM aulas_academia WHERE curso_id = $1`, id); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for i, a := range aulas {
			ordem := a.Ordem
			if ordem == 0 {
				ordem = i + 1
			}
			batch.Queue(`
				INSERT INTO aulas_academia (curso_id, ordem, titulo, conteudo, video_url, duracao_min)
				VALUES ($1, $2, $3, $4, $5, $6)`, id, ordem, a.Titulo, a.Conteudo, a.VideoURL, a.DuracaoMin)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	return id, err
}
