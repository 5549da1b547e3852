package comunidade

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

// Repository persiste o feed e tudo que pendura nos posts.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const postSelect = `
	SELECT p.id, p.tipo, p.titulo, p.conteudo, p.imagem_url, p.criado_em,
	       u.id, u.nome, u.username, u.avatar_url, u.verificado,
	       (SELECT count(*) FROM comentarios c WHERE c.post_id = p.id),
	       (SELECT r.tipo FROM reacoes r WHERE r.post_id = p.id AND r.usuario_id = $1)
	FROM posts p
	JOIN usuarios u ON u.id = p.autor_id`

func scanPost(row pgx.Row) (Post, error) {
	var p Post
	err := row.Scan(&p.ID, &p.Tipo, &p.Titulo, &p.Conteudo, &p.ImagemURL, &p.CriadoEm,
		&p.Autor.ID, &p.Autor.Nome, &p.Autor.Username, &p.Autor.AvatarURL, &p.Autor.Verificado,
		&p.Comentarios, &p.MinhaReacao)
	if errors.Is(err, pgx.ErrNoRows) {
		return Post{}, repo.ErrNotFound
	}
	p.Reacoes = map[string]int{}
	return p, err
}

func (r *Repository) InsertPost(ctx context.Context, in NovoPost) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var id uuid.UUID
	err := r.db.QueryRow(ctx, `
		INSERT INTO posts (autor_id, tipo, titulo, conteudo, imagem_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`, in.AutorID, in.Tipo, in.Titulo, in.Conteudo, in.ImagemURL).Scan(&id)
	return id, err
}

func (r *Repository) GetPost(ctx context.Context, viewer, id uuid.UUID) (Post, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	p, err := scanPost(r.db.QueryRow(ctx, postSelect+` WHERE p.id = $2`, viewer, id))
	if err != nil {
		return Post{}, err
	}
	contagens, err := r.contarReacoes(ctx, []uuid.UUID{p.ID})
	if err != nil {
		return Post{}, err
	}
	if c, ok := contagens[p.ID]; ok {
		p.Reacoes = c
	}
	return p, nil
}

func (r *Repository) Feed(ctx context.Context, viewer uuid.UUID, offset, limit int) ([]Post, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, postSelect+` ORDER BY p.criado_em DESC, p.id OFFSET $2 LIMIT $3`, viewer, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []Post{}
	ids := []uuid.UUID{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return posts, nil
	}

	contagens, err := r.contarReacoes(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		if c, ok := contagens[posts[i].ID]; ok {
			posts[i].Reacoes = c
		}
	}
	return posts, nil
}

func (r *Repository) contarReacoes(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]map[string]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT post_id, tipo, count(*) FROM reacoes
		WHERE post_id = ANY($1)
		GROUP BY post_id, tipo`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[uuid.UUID]map[string]int{}
	for rows.Next() {
		var (
			id   uuid.UUID
			tipo string
			n    int
		)
		if err := rows.Scan(&id, &tipo, &n); err != nil {
			return nil, err
		}
		if out[id] == nil {
			out[id] = map[string]int{}
		}
		out[id][tipo] = n
	}
	return out, rows.Err()
}

func (r *Repository) DeletePost(ctx context.Context, id, autor uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND autor_id = $2`, id, autor)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *Repository) NomeUsuario(ctx context.Context, id uuid.UUID) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var nome string
	err := r.db.QueryRow(ctx, `SELECT nome FROM usuarios WHERE id = $1`, id).Scan(&nome)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", repo.ErrNotFound
	}
	return nome, err
}

// insertAviso grava a notificação opcional na transação corrente.
func insertAviso(ctx context.Context, q db.Querier, aviso *notificacao.Nova) (*uuid.UUID, error) {
	if aviso == nil {
		return nil, nil
	}
	id, err := notificacao.Insert(ctx, q, *aviso)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (r *Repository) InsertComentario(ctx context.Context, postID, autor uuid.UUID, conteudo string, aviso *notificacao.Nova) (Comentario, *uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	c := Comentario{PostID: postID, Conteudo: conteudo}
	var notifID *uuid.UUID
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			WITH novo AS (
			    INSERT INTO comentarios (post_id, autor_id, conteudo) VALUES ($1, $2, $3)
			    RETURNING id, criado_em, autor_id
			)
			SELECT novo.id, novo.criado_em, u.id, u.nome, u.username, u.avatar_url, u.verificado
			FROM novo JOIN usuarios u ON u.id = novo.autor_id`, postID, autor, conteudo,
		).Scan(&c.ID, &c.CriadoEm, &c.Autor.ID, &c.Autor.Nome, &c.Autor.Username, &c.Autor.AvatarURL, &c.Autor.Verificado)
		if err != nil {
			return err
		}
		notifID, err = insertAviso(ctx, tx, aviso)
		return err
	})
	return c, notifID, err
}

func (r *Repository) ListComentarios(ctx context.Context, postID uuid.UUID) ([]Comentario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.post_id, c.conteudo, c.criado_em, u.id, u.nome, u.username, u.avatar_url, u.verificado
		FROM comentarios c
		JOIN usuarios u ON u.id = c.autor_id
		WHERE c.post_id = $1
		ORDER BY c.criado_em`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Comentario{}
	for rows.Next() {
		var c Comentario
		if err := rows.Scan(&c.ID, &c.PostID, &c.Conteudo, &c.CriadoEm,
			&c.Autor.ID, &c.Autor.Nome, &c.Autor.Username, &c.Autor.AvatarURL, &c.Autor.Verificado); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteComentario(ctx context.Context, id, autor uuid.UUID) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var postID uuid.UUID
	err := r.db.QueryRow(ctx, `DELETE FROM comentarios WHERE id = $1 AND autor_id = $2 RETURNING post_id`, id, autor).Scan(&postID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, repo.ErrNotFound
	}
	return postID, err
}

// lockReacao serializa o toggle do par post/usuário. FOR UPDATE não trava
// linha inexistente, então duas primeiras reações simultâneas passariam juntas.
const lockReacao = `SELECT pg_advisory_xact_lock(hashtext($1::text), hashtext($2::text))`

// Reagir aplica o toggle dentro de uma transação travada no par post/usuário.
func (r *Repository) Reagir(ctx context.Context, postID, usuario uuid.UUID, tipo string, aviso *notificacao.Nova) (*string, *uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var (
		ativa   *string
		notifID *uuid.UUID
	)
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockReacao, postID, usuario); err != nil {
			return err
		}

		var atual *string
		var existente string
		err := tx.QueryRow(ctx, `SELECT tipo FROM reacoes WHERE post_id = $1 AND usuario_id = $2`, postID, usuario).Scan(&existente)
		switch {
		case err == nil:
			atual = &existente
		case !errors.Is(err, pgx.ErrNoRows):
			return err
		}

		ativa = ProximaReacao(atual, tipo)
		if ativa == nil {
			_, err = tx.Exec(ctx, `DELETE FROM reacoes WHERE post_id = $1 AND usuario_id = $2`, postID, usuario)
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO reacoes (post_id, usuario_id, tipo) VALUES ($1, $2, $3)
			ON CONFLICT (post_id, usuario_id) DO UPDATE SET tipo = EXCLUDED.tipo, criado_em = now()`,
			postID, usuario, *ativa); err != nil {
			return err
		}
		// só a primeira reação avisa o autor; trocar de tipo não gera ruído
		if atual == nil {
			notifID, err = insertAviso(ctx, tx, aviso)
		}
		return err
	})
	return ativa, notifID, err
}

func (r *Repository) InsertInteracao(ctx context.Context, postID, usuario uuid.UUID, mensagem string, aviso *notificacao.Nova) (Interacao, *uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	it := Interacao{PostID: postID, Mensagem: mensagem, Usuario: Autor{ID: usuario}}
	var notifID *uuid.UUID
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO interacoes_post (post_id, usuario_id, mensagem)
			VALUES ($1, $2, $3)
			RETURNING id, status, criado_em`, postID, usuario, mensagem,
		).Scan(&it.ID, &it.Status, &it.CriadoEm)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return repo.ErrConflict
			}
			return err
		}
		if aviso != nil {
			aviso.ReferenciaID = &it.ID
		}
		notifID, err = insertAviso(ctx, tx, aviso)
		return err
	})
	return it, notifID, err
}

func (r *Repository) ListInteracoes(ctx context.Context, postID uuid.UUID) ([]Interacao, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT i.id, i.post_id, i.mensagem, i.status, i.criado_em, i.decidido_em,
		       u.id, u.nome, u.username, u.avatar_url, u.verificado
		FROM interacoes_post i
		JOIN usuarios u ON u.id = i.usuario_id
		WHERE i.post_id = $1
		ORDER BY i.criado_em`, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Interacao{}
	for rows.Next() {
		var it Interacao
		if err := rows.Scan(&it.ID, &it.PostID, &it.Mensagem, &it.Status, &it.CriadoEm, &it.DecididoEm,
			&it.Usuario.ID, &it.Usuario.Nome, &it.Usuario.Username, &it.Usuario.AvatarURL, &it.Usuario.Verificado); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// GetInteracao devolve a candidatura e o autor do post a que ela pertence.
func (r *Repository) GetInteracao(ctx context.Context, id uuid.UUID) (Interacao, uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var (
		it    Interacao
		autor uuid.UUID
	)
	err := r.db.QueryRow(ctx, `
		SELECT i.id, i.post_id, i.usuario_id, i.mensagem, i.status, i.criado_em, i.decidido_em, p.autor_id
		FROM interacoes_post i
		JOIN posts p ON p.id = i.post_id
		WHERE i.id = $1`, id,
	).Scan(&it.ID, &it.PostID, &it.Usuario.ID, &it.Mensagem, &it.Status, &it.CriadoEm, &it.DecididoEm, &autor)
	if errors.Is(err, pgx.ErrNoRows) {
		return Interacao{}, uuid.Nil, repo.ErrNotFound
	}
	return it, autor, err
}

// DecidirInteracao só muda candidaturas pendentes.
func (r *Repository) DecidirInteracao(ctx context.Context, id uuid.UUID, status string, aviso *notificacao.Nova) (Interacao, *uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var (
		it      Interacao
		notifID *uuid.UUID
	)
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE interacoes_post SET status = $2, decidido_em = now()
			WHERE id = $1 AND status = 'pendente'
			RETURNING id, post_id, usuario_id, mensagem, status, criado_em, decidido_em`, id, status,
		).Scan(&it.ID, &it.PostID, &it.Usuario.ID, &it.Mensagem, &it.Status, &it.CriadoEm, &it.DecididoEm)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNaoPendente
		}
		if err != nil {
			return err
		}
		notifID, err = insertAviso(ctx, tx, aviso)
		return err
	})
	return it, notifID, err
}
