package conexao

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusPendente = "pendente"
	StatusAprovado = "aprovado"
)

// Situação da relação vista por um dos lados do par.
const (
	SituacaoNenhuma          = "nenhuma"
	SituacaoPendenteEnviada  = "pendente_enviada"
	SituacaoPendenteRecebida = "pendente_recebida"
	SituacaoAprovado         = "aprovado"
)

type Conexao struct {
	ID            uuid.UUID `json:"id"`
	SolicitanteID uuid.UUID `json:"solicitante_id"`
	ReceptorID    uuid.UUID `json:"receptor_id"`
	Status        string    `json:"status"`
	CriadoEm      time.Time `json:"criado_em"`
	AtualizadoEm  time.Time `json:"atualizado_em"`
}

// Outro devolve o participante do par que não é usuarioID.
func (c Conexao) Outro(usuarioID uuid.UUID) uuid.UUID {
	if c.SolicitanteID == usuarioID {
		return c.ReceptorID
	}
	return c.SolicitanteID
}

func (c Conexao) Participa(usuarioID uuid.UUID) bool {
	return c.SolicitanteID == usuarioID || c.ReceptorID == usuarioID
}

// Contato é o resumo público de um usuário nas listas de conexões.
type Contato struct {
	ID               uuid.UUID  `json:"id"`
	Nome             string     `json:"nome"`
	Username         *string    `json:"username,omitempty"`
	AvatarURL        *string    `json:"avatar_url,omitempty"`
	TipoConta        *string    `json:"tipo_conta,omitempty"`
	FuncoesInteresse []string   `json:"funcoes_interesse,omitempty"`
	ConexaoID        *uuid.UUID `json:"conexao_id,omitempty"`
	Desde            *time.Time `json:"desde,omitempty"`
}

// Pedido é um convite pendente recebido.
type Pedido struct {
	ConexaoID   uuid.UUID `json:"conexao_id"`
	Solicitante Contato   `json:"solicitante"`
	CriadoEm    time.Time `json:"criado_em"`
}

// Situacao calcula o estado do par do ponto de vista de viewer. c nil
// significa que não há vínculo.
func Situacao(c *Conexao, viewer uuid.UUID) string {
	switch {
	case c == nil:
		return SituacaoNenhuma
	case c.Status == StatusAprovado:
		return SituacaoAprovado
	case c.SolicitanteID == viewer:
		return SituacaoPendenteEnviada
	default:
		return SituacaoPendenteRecebida
	}
}
