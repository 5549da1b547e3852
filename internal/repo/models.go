package repo

import (
	"time"

	"github.com/google/uuid"
)

// Usuario representa a conta e o perfil público de um membro.
type Usuario struct {
	ID                  uuid.UUID
	Nome                string
	Username            *string
	Email               string
	SenhaHash           string
	Bio                 *string
	AvatarURL           *string
	Verificado          bool
	Premium             bool
	TipoConta           *string
	Objetivo            *string
	FuncoesInteresse    []string
	OnboardingConcluido bool
	Ativo               bool
	CriadoEm            time.Time
}

// TokenRefresh modela tabela de refresh tokens.
type TokenRefresh struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Audience  string
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
	Revogado  bool
}

// InsertRefreshTokenParams agrupa os campos para gravar um refresh.
type InsertRefreshTokenParams struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Audience  string
	TokenHash string
	Expiracao time.Time
	CriadoEm  time.Time
}

// CreateUsuarioParams agrupa os campos do cadastro.
type CreateUsuarioParams struct {
	Nome      string
	Email     string
	SenhaHash string
}

// Passkey é uma credencial WebAuthn vinculada a um usuário.
type Passkey struct {
	ID           uuid.UUID
	UsuarioID    uuid.UUID
	CredentialID []byte
	PublicKey    []byte
	SignCount    int64
	Transports   []string
	AAGUID       []byte
	Nickname     *string
	Cloned       bool
	CriadoEm     time.Time
}

// CreatePasskeyParams agrupa os campos de uma credencial recém-registrada.
type CreatePasskeyParams struct {
	UsuarioID    uuid.UUID
	CredentialID []byte
	PublicKey    []byte
	SignCount    int64
	Transports   []string
	AAGUID       []byte
	Nickname     *string
}
