package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/novaplataforma/nova/internal/repo"
)

var (
	// ErrPasskeyDisabled indica que o servidor subiu sem WebAuthn.
	ErrPasskeyDisabled = errors.New("login por passkey não configurado")
	// ErrPasskeySession indica sessão de cerimônia ausente, expirada ou de outro usuário.
	ErrPasskeySession = errors.New("sessão de passkey inválida ou expirada")
	// ErrPasskeyRejected indica resposta do autenticador que não confere.
	ErrPasskeyRejected = errors.New("passkey não reconhecida")
)

const (
	passkeyRegisterPrefix = "nova:webauthn:registro:"
	passkeyLoginPrefix    = "nova:webauthn:login:"
	passkeySessionTTL     = 5 * time.Minute
)

type passkeyRepository interface {
	ListPasskeys(ctx context.Context, usuarioID uuid.UUID) ([]repo.Passkey, error)
	GetPasskeyByCredentialID(ctx context.Context, credentialID []byte) (repo.Passkey, error)
	CreatePasskey(ctx context.Context, arg repo.CreatePasskeyParams) (repo.Passkey, error)
	UpdatePasskeyCounter(ctx context.Context, id uuid.UUID, signCount int64, cloned bool) error
}

// passkeyCeremony é o recorte de *webauthn.WebAuthn usado aqui.
type passkeyCeremony interface {
	BeginRegistration(user webauthn.User, opts ...webauthn.RegistrationOption) (*protocol.CredentialCreation, *webauthn.SessionData, error)
	CreateCredential(user webauthn.User, session webauthn.SessionData, parsed *protocol.ParsedCredentialCreationData) (*webauthn.Credential, error)
	BeginLogin(user webauthn.User, opts ...webauthn.LoginOption) (*protocol.CredentialAssertion, *webauthn.SessionData, error)
	ValidateLogin(user webauthn.User, session webauthn.SessionData, parsed *protocol.ParsedCredentialAssertionData) (*webauthn.Credential, error)
}

// EnablePasskeys liga as cerimônias WebAuthn. Sem ela os métodos de passkey
// devolvem ErrPasskeyDisabled.
func (s *AuthService) EnablePasskeys(wa passkeyCeremony) {
	s.webauthn = wa
}

// PasskeyRegistration é o desafio entregue ao navegador.
type PasskeyRegistration struct {
	Session string
	Options *protocol.CredentialCreation
}

// PasskeyAssertion é o desafio de login entregue ao navegador.
type PasskeyAssertion struct {
	Session string
	Options *protocol.CredentialAssertion
}

// BeginPasskeyRegistration abre a cerimônia para o usuário logado, excluindo
// as credenciais que ele já tem.
func (s *AuthService) BeginPasskeyRegistration(ctx context.Context, userID uuid.UUID) (*PasskeyRegistration, error) {
	if s.webauthn == nil {
		return nil, ErrPasskeyDisabled
	}
	user, err := s.loadWebAuthnUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	exclusions := make([]protocol.CredentialDescriptor, 0, len(user.credentials))
	for _, cred := range user.credentials {
		exclusions = append(exclusions, cred.Descriptor())
	}
	selection := protocol.AuthenticatorSelection{UserVerification: protocol.VerificationRequired}

	opts, session, err := s.webauthn.BeginRegistration(user,
		webauthn.WithExclusions(exclusions),
		webauthn.WithAuthenticatorSelection(selection),
	)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	if err := s.storePasskeySession(ctx, passkeyRegisterPrefix, sessionID, session, userID); err != nil {
		return nil, err
	}
	return &PasskeyRegistration{Session: sessionID, Options: opts}, nil
}

// FinishPasskeyRegistration valida a resposta do autenticador e grava a credencial.
func (s *AuthService) FinishPasskeyRegistration(ctx context.Context, userID uuid.UUID, sessionID string, parsed *protocol.ParsedCredentialCreationData, nickname string) (repo.Passkey, error) {
	if s.webauthn == nil {
		return repo.Passkey{}, ErrPasskeyDisabled
	}
	session, owner, err := s.consumePasskeySession(ctx, passkeyRegisterPrefix, sessionID)
	if err != nil {
		return repo.Passkey{}, err
	}
	if owner != userID {
		return repo.Passkey{}, ErrPasskeySession
	}

	user, err := s.loadWebAuthnUser(ctx, userID)
	if err != nil {
		return repo.Passkey{}, err
	}
	credential, err := s.webauthn.CreateCredential(user, *session, parsed)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("passkey: registro rejeitado")
		return repo.Passkey{}, ErrPasskeyRejected
	}

	transports := make([]string, 0, len(credential.Transport))
	for _, t := range credential.Transport {
		transports = append(transports, string(t))
	}
	var nick *string
	if n := strings.TrimSpace(nickname); n != "" {
		nick = &n
	}

	created, err := s.passkeys.CreatePasskey(ctx, repo.CreatePasskeyParams{
		UsuarioID:    userID,
		CredentialID: credential.ID,
		PublicKey:    credential.PublicKey,
		SignCount:    int64(credential.Authenticator.SignCount),
		Transports:   transports,
		AAGUID:       credential.Authenticator.AAGUID,
		Nickname:     nick,
	})
	if err != nil {
		return repo.Passkey{}, err
	}
	log.Ctx(ctx).Info().Str("usuario_id", userID.String()).Msg("passkey registrada")
	return created, nil
}

// ListPasskeys devolve as credenciais do usuário.
func (s *AuthService) ListPasskeys(ctx context.Context, userID uuid.UUID) ([]repo.Passkey, error) {
	return s.passkeys.ListPasskeys(ctx, userID)
}

// BeginPasskeyLogin abre a cerimônia de login para o email informado.
// Conta inexistente ou sem passkey respondem igual.
func (s *AuthService) BeginPasskeyLogin(ctx context.Context, email string) (*PasskeyAssertion, error) {
	if s.webauthn == nil {
		return nil, ErrPasskeyDisabled
	}
	found, err := s.repo.GetUsuarioByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !found.Ativo {
		return nil, ErrAccountDisabled
	}

	user, err := s.webAuthnUserFor(ctx, found)
	if err != nil {
		return nil, err
	}
	if len(user.credentials) == 0 {
		return nil, ErrInvalidCredentials
	}

	opts, session, err := s.webauthn.BeginLogin(user)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.NewString()
	if err := s.storePasskeySession(ctx, passkeyLoginPrefix, sessionID, session, found.ID); err != nil {
		return nil, err
	}
	return &PasskeyAssertion{Session: sessionID, Options: opts}, nil
}

// FinishPasskeyLogin valida a asserção e abre sessão como no login por senha.
func (s *AuthService) FinishPasskeyLogin(ctx context.Context, sessionID string, parsed *protocol.ParsedCredentialAssertionData) (*LoginResult, error) {
	if s.webauthn == nil {
		return nil, ErrPasskeyDisabled
	}
	session, userID, err := s.consumePasskeySession(ctx, passkeyLoginPrefix, sessionID)
	if err != nil {
		return nil, err
	}

	found, err := s.repo.GetUsuarioByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPasskeySession
		}
		return nil, err
	}
	if !found.Ativo {
		return nil, ErrAccountDisabled
	}

	user, err := s.webAuthnUserFor(ctx, found)
	if err != nil {
		return nil, err
	}
	credential, err := s.webauthn.ValidateLogin(user, *session, parsed)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("passkey: asserção rejeitada")
		return nil, ErrPasskeyRejected
	}

	stored, err := s.passkeys.GetPasskeyByCredentialID(ctx, credential.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPasskeyRejected
		}
		return nil, err
	}
	if err := s.passkeys.UpdatePasskeyCounter(ctx, stored.ID, int64(credential.Authenticator.SignCount), credential.Authenticator.CloneWarning); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("passkey: contador não atualizado")
	}

	return s.issue(ctx, found)
}

type passkeySessionEnvelope struct {
	Session *webauthn.SessionData `json:"session"`
	UserID  string                `json:"user_id"`
}

func (s *AuthService) storePasskeySession(ctx context.Context, prefix, sessionID string, data *webauthn.SessionData, userID uuid.UUID) error {
	payload, err := json.Marshal(passkeySessionEnvelope{Session: data, UserID: userID.String()})
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, prefix+sessionID, string(payload), passkeySessionTTL).Err()
}

// consumePasskeySession lê e apaga a sessão: cada desafio vale uma tentativa.
func (s *AuthService) consumePasskeySession(ctx context.Context, prefix, sessionID string) (*webauthn.SessionData, uuid.UUID, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, uuid.Nil, ErrPasskeySession
	}
	key := prefix + sessionID
	raw, err := s.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, uuid.Nil, ErrPasskeySession
	}
	if err != nil {
		return nil, uuid.Nil, err
	}
	_ = s.redis.Del(ctx, key)

	var envelope passkeySessionEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil || envelope.Session == nil {
		return nil, uuid.Nil, ErrPasskeySession
	}
	userID, err := uuid.Parse(envelope.UserID)
	if err != nil {
		return nil, uuid.Nil, ErrPasskeySession
	}
	return envelope.Session, userID, nil
}

func (s *AuthService) loadWebAuthnUser(ctx context.Context, userID uuid.UUID) (*webAuthnUser, error) {
	found, err := s.repo.GetUsuarioByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.webAuthnUserFor(ctx, found)
}

func (s *AuthService) webAuthnUserFor(ctx context.Context, u repo.Usuario) (*webAuthnUser, error) {
	passkeys, err := s.passkeys.ListPasskeys(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &webAuthnUser{
		id:          u.ID,
		name:        u.Email,
		displayName: u.Nome,
		credentials: toWebauthnCredentials(passkeys),
	}, nil
}

type webAuthnUser struct {
	id          uuid.UUID
	name        string
	displayName string
	credentials []webauthn.Credential
}

func (u *webAuthnUser) WebAuthnID() []byte {
	id := make([]byte, 16)
	copy(id, u.id[:])
	return id
}

func (u *webAuthnUser) WebAuthnName() string                       { return u.name }
func (u *webAuthnUser) WebAuthnDisplayName() string                { return u.displayName }
func (u *webAuthnUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

func toWebauthnCredentials(passkeys []repo.Passkey) []webauthn.Credential {
	creds := make([]webauthn.Credential, 0, len(passkeys))
	for _, pk := range passkeys {
		cred := webauthn.Credential{
			ID:        append([]byte(nil), pk.CredentialID...),
			PublicKey: append([]byte(nil), pk.PublicKey...),
			Transport: toAuthenticatorTransports(pk.Transports),
		}
		cred.Authenticator.SignCount = uint32(pk.SignCount)
		cred.Authenticator.CloneWarning = pk.Cloned
		if len(pk.AAGUID) > 0 {
			cred.Authenticator.AAGUID = append([]byte(nil), pk.AAGUID...)
		}
		creds = append(creds, cred)
	}
	return creds
}

func toAuthenticatorTransports(values []string) []protocol.AuthenticatorTransport {
	if len(values) == 0 {
		return nil
	}
	transports := make([]protocol.AuthenticatorTransport, 0, len(values))
	for _, value := range values {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "usb":
			transports = append(transports, protocol.USB)
		case "nfc":
			transports = append(transports, protocol.NFC)
		case "ble":
			transports = append(transports, protocol.BLE)
		case "internal":
			transports = append(transports, protocol.Internal)
		case "smart-card":
			transports = append(transports, protocol.SmartCard)
		case "hybrid", "cable":
			transports = append(transports, protocol.Hybrid)
		}
	}
	return transports
}
