package formulario

import (
	"time"

	"github.com/google/uuid"
)

// Tipos de pergunta aceitos em tipo_selecao.
const (
	SelecaoRadio    = "radio"
	SelecaoCombobox = "combobox"
	SelecaoTexto    = "texto"
	SelecaoArquivo  = "arquivo"
)

type Formulario struct {
	ID        uuid.UUID  `json:"id"`
	Titulo    string     `json:"titulo"`
	Descricao *string    `json:"descricao,omitempty"`
	Ativo     bool       `json:"ativo"`
	Prazo     *time.Time `json:"prazo,omitempty"`
	CriadoEm  time.Time  `json:"criado_em"`
	Perguntas []Pergunta `json:"perguntas,omitempty"`
}

// Aberto indica se ainda aceita respostas em agora.
func (f Formulario) Aberto(agora time.Time) bool {
	return f.Ativo && (f.Prazo == nil || agora.Before(*f.Prazo))
}

type Pergunta struct {
	ID           uuid.UUID `json:"id"`
	FormularioID uuid.UUID `json:"formulario_id"`
	Ordem        int       `json:"ordem"`
	Enunciado    string    `json:"enunciado"`
	TipoSelecao  string    `json:"tipo_selecao"`
	Opcoes       []string  `json:"opcoes"`
	Obrigatoria  bool      `json:"obrigatoria"`
}

// Aceita informa se valor é uma das opções de perguntas de escolha.
func (p Pergunta) Aceita(valor string) bool {
	if p.TipoSelecao != SelecaoRadio && p.TipoSelecao != SelecaoCombobox {
		return true
	}
	for _, op := range p.Opcoes {
		if op == valor {
			return true
		}
	}
	return false
}

type Resposta struct {
	ID           uuid.UUID `json:"id"`
	FormularioID uuid.UUID `json:"formulario_id"`
	PerguntaID   uuid.UUID `json:"pergunta_id"`
	UsuarioID    uuid.UUID `json:"usuario_id"`
	Valor        *string   `json:"valor,omitempty"`
	ArquivoURL   *string   `json:"arquivo_url,omitempty"`
	CriadoEm     time.Time `json:"criado_em"`
}

// Arquivo é um anexo enviado para uma pergunta do tipo arquivo.
type Arquivo struct {
	Nome        string
	ContentType string
	Dados       []byte
}

// Envio agrupa valores e anexos indexados pelo id da pergunta.
type Envio struct {
	Valores  map[uuid.UUID]string
	Arquivos map[uuid.UUID]Arquivo
}

// Resultado expõe o que foi gravado e o que ficou de fora por falha de upload.
type Resultado struct {
	Inseridas int         `json:"inseridas"`
	Ignoradas []uuid.UUID `json:"ignoradas"`
}
