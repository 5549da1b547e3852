// Package realtime propaga mudanças de linhas para os clientes conectados.
//
// Os serviços de domínio publicam um Event após cada escrita confirmada. O
// evento passa pelo Redis (pub/sub entre instâncias) e, opcionalmente, é
// espelhado no Kafka. Cada instância entrega o evento ao Hub local, que
// reenvia a mudança aos sockets dos usuários afetados e recalcula os
// contadores de badge quando a tabela alterada é de notificações ou mensagens.
package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/novaplataforma/nova/internal/util"
)

const (
	TabelaNotificacoes = "notificacoes"
	TabelaMensagens    = "mensagens_privadas"
	TabelaConexoes     = "conexoes"
	TabelaPosts        = "posts"
	TabelaComentarios  = "comentarios"
	TabelaReacoes      = "reacoes"
	TabelaInteracoes   = "interacoes_post"

	AcaoInsert = "INSERT"
	AcaoUpdate = "UPDATE"
	AcaoDelete = "DELETE"
)

// Event descreve uma mudança de linha e os usuários interessados nela.
type Event struct {
	Tabela     string      `json:"tabela"`
	Acao       string      `json:"acao"`
	RegistroID uuid.UUID   `json:"registro_id"`
	Usuarios   []uuid.UUID `json:"usuarios"`
	Em         time.Time   `json:"em"`
}

// NewEvent monta o evento com o horário atual.
func NewEvent(tabela, acao string, registroID uuid.UUID, usuarios ...uuid.UUID) Event {
	return Event{Tabela: tabela, Acao: acao, RegistroID: registroID, Usuarios: usuarios, Em: util.Now()}
}

// AfetaContadores indica se a mudança altera algum badge de não lidos.
func (e Event) AfetaContadores() bool {
	return e.Tabela == TabelaNotificacoes || e.Tabela == TabelaMensagens
}

// Publisher entrega eventos de mudança.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Fanout publica em todos os destinos e agrega as falhas.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Emit publica sem propagar erro: a escrita já foi confirmada e o cliente
// refaz a consulta no próximo evento ou ao reabrir a tela.
func Emit(ctx context.Context, p Publisher, events ...Event) {
	if p == nil {
		return
	}
	for _, ev := range events {
		if err := p.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Str("tabela", ev.Tabela).Str("acao", ev.Acao).Msg("realtime: falha ao publicar evento")
		}
	}
}
