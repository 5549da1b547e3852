package comunidade

import (
	"time"

	"github.com/google/uuid"
)

const (
	TipoGeral     = "geral"
	TipoVaga      = "vaga"
	TipoParceria  = "parceria"
	TipoFreelance = "freelance"
	TipoAjuda     = "ajuda"
)

const (
	ReacaoCurtir = "curtir"
	ReacaoAmei   = "amei"
	ReacaoApoiar = "apoiar"
	ReacaoGenial = "genial"
)

const (
	InteracaoPendente  = "pendente"
	InteracaoAprovado  = "aprovado"
	InteracaoRejeitado = "rejeitado"
)

var tiposPost = map[string]bool{TipoGeral: true, TipoVaga: true, TipoParceria: true, TipoFreelance: true, TipoAjuda: true}

var tiposReacao = map[string]bool{ReacaoCurtir: true, ReacaoAmei: true, ReacaoApoiar: true, ReacaoGenial: true}

// Autor é o resumo de quem publicou.
type Autor struct {
	ID         uuid.UUID `json:"id"`
	Nome       string    `json:"nome"`
	Username   *string   `json:"username,omitempty"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	Verificado bool      `json:"verificado"`
}

type Post struct {
	ID          uuid.UUID      `json:"id"`
	Autor       Autor          `json:"autor"`
	Tipo        string         `json:"tipo"`
	Titulo      *string        `json:"titulo,omitempty"`
	Conteudo    string         `json:"conteudo"`
	ImagemURL   *string        `json:"imagem_url,omitempty"`
	CriadoEm    time.Time      `json:"criado_em"`
	Reacoes     map[string]int `json:"reacoes"`
	MinhaReacao *string        `json:"minha_reacao,omitempty"`
	Comentarios int            `json:"comentarios"`
}

// AceitaInteracao informa se o post recebe candidaturas.
func (p Post) AceitaInteracao() bool {
	return p.Tipo != TipoGeral
}

type NovoPost struct {
	AutorID   uuid.UUID
	Tipo      string
	Titulo    *string
	Conteudo  string
	ImagemURL *string
}

type Comentario struct {
	ID       uuid.UUID `json:"id"`
	PostID   uuid.UUID `json:"post_id"`
	Autor    Autor     `json:"autor"`
	Conteudo string    `json:"conteudo"`
	CriadoEm time.Time `json:"criado_em"`
}

type Interacao struct {
	ID         uuid.UUID  `json:"id"`
	PostID     uuid.UUID  `json:"post_id"`
	Usuario    Autor      `json:"usuario"`
	Mensagem   string     `json:"mensagem"`
	Status     string     `json:"status"`
	CriadoEm   time.Time  `json:"criado_em"`
	DecididoEm *time.Time `json:"decidido_em,omitempty"`
}

// ProximaReacao aplica o toggle: repetir o tipo atual remove a reação,
// qualquer outro tipo substitui. nil significa sem reação.
func ProximaReacao(atual *string, nova string) *string {
	if atual != nil && *atual == nova {
		return nil
	}
	return &nova
}
