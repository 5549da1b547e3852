package mensagem

import (
	"time"

	"github.com/google/uuid"
)

const MaxConteudo = 4000

type Mensagem struct {
	ID             uuid.UUID `json:"id"`
	RemetenteID    uuid.UUID `json:"remetente_id"`
	DestinatarioID uuid.UUID `json:"destinatario_id"`
	Conteudo       string    `json:"conteudo"`
	Visualizado    bool      `json:"visualizado"`
	CriadoEm       time.Time `json:"criado_em"`
}

// Grupo reúne as mensagens de um mesmo dia no fuso configurado.
type Grupo struct {
	Data      string     `json:"data"`
	Mensagens []Mensagem `json:"mensagens"`
}

// Conversa é uma linha da caixa de entrada.
type Conversa struct {
	ParceiroID     uuid.UUID `json:"parceiro_id"`
	ParceiroNome   string    `json:"parceiro_nome"`
	ParceiroAvatar *string   `json:"parceiro_avatar,omitempty"`
	Ultima         Mensagem  `json:"ultima"`
	NaoLidas       int       `json:"nao_lidas"`
}

// AgruparPorData agrupa mensagens já ordenadas por criado_em, preservando a
// ordem, usando o dia do calendário em loc.
func AgruparPorData(msgs []Mensagem, loc *time.Location) []Grupo {
	if loc == nil {
		loc = time.UTC
	}
	grupos := []Grupo{}
	for _, m := range msgs {
		dia := m.CriadoEm.In(loc).Format("2006-01-02")
		if n := len(grupos); n > 0 && grupos[n-1].Data == dia {
			grupos[n-1].Mensagens = append(grupos[n-1].Mensagens, m)
			continue
		}
		grupos = append(grupos, Grupo{Data: dia, Mensagens: []Mensagem{m}})
	}
	return grupos
}
