package perfil

import (
	"time"

	"github.com/google/uuid"
)

// Tipos de conta aceitos no onboarding.
const (
	ContaEstudante    = "estudante"
	ContaProfissional = "profissional"
	ContaEmpresa      = "empresa"
)

const (
	MinInteresses = 1
	MaxInteresses = 10
)

// Perfil é a visão pública do usuário. Email só é preenchido para o próprio dono.
type Perfil struct {
	ID                  uuid.UUID `json:"id"`
	Nome                string    `json:"nome"`
	Username            *string   `json:"username,omitempty"`
	Email               string    `json:"email,omitempty"`
	Bio                 *string   `json:"bio,omitempty"`
	AvatarURL           *string   `json:"avatar_url,omitempty"`
	Verificado          bool      `json:"verificado"`
	Premium             bool      `json:"premium"`
	TipoConta           *string   `json:"tipo_conta,omitempty"`
	Objetivo            *string   `json:"objetivo,omitempty"`
	FuncoesInteresse    []string  `json:"funcoes_interesse"`
	OnboardingConcluido bool      `json:"onboarding_concluido"`
	CriadoEm            time.Time `json:"criado_em"`
}

// Resumo aparece em buscas e listas.
type Resumo struct {
	ID         uuid.UUID `json:"id"`
	Nome       string    `json:"nome"`
	Username   *string   `json:"username,omitempty"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
	Verificado bool      `json:"verificado"`
}

type Atualizacao struct {
	Nome     string
	Username *string
	Bio      *string
}

type Onboarding struct {
	TipoConta        string
	Objetivo         string
	FuncoesInteresse []string
}

// Imagem é o arquivo de avatar já lido da requisição.
type Imagem struct {
	Nome        string
	ContentType string
	Dados       []byte
}
