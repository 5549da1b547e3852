package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/novaplataforma/nova/internal/auth"
	"github.com/novaplataforma/nova/internal/repo"
	"github.com/novaplataforma/nova/internal/util"
)

var (
	// ErrInvalidCredentials indica falha na autenticação.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrAccountDisabled indica conta desativada.
	ErrAccountDisabled = errors.New("conta desativada")
	// ErrRefreshInvalid indica refresh token inválido ou expirado.
	ErrRefreshInvalid = errors.New("refresh token inválido")
	// ErrEmailInUse indica email já cadastrado.
	ErrEmailInUse = errors.New("email já cadastrado")
)

// Papéis emitidos no JWT.
const (
	RoleMembro  = "MEMBRO"
	RolePremium = "PREMIUM"
)

const refreshActive = "active"

type authRepository interface {
	GetUsuarioByEmail(ctx context.Context, email string) (repo.Usuario, error)
	GetUsuarioByID(ctx context.Context, id uuid.UUID) (repo.Usuario, error)
	CreateUsuario(ctx context.Context, arg repo.CreateUsuarioParams) (repo.Usuario, error)
	UpdateSenhaHash(ctx context.Context, id uuid.UUID, hash string) error
	InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.TokenRefresh, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.TokenRefresh, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthService concentra cadastro, login e sessões.
type AuthService struct {
	repo       authRepository
	passkeys   passkeyRepository
	redis      redisCommander
	jwt        *auth.JWTManager
	webauthn   passkeyCeremony
	refreshTTL time.Duration
}

// NewAuthService cria novo serviço.
func NewAuthService(r *repo.Queries, redisClient *redis.Client, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *AuthService {
	return &AuthService{repo: r, passkeys: r, redis: redisClient, jwt: jwtMgr, refreshTTL: refreshTTL}
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// LoginResult representa retorno padrão de autenticações.
type LoginResult struct {
	AccessToken   string
	AccessExpiry  time.Time
	RefreshToken  string
	RefreshExpiry time.Time
	Subject       uuid.UUID
	Roles         []string
	Profile       *SessionProfile
}

// SessionProfile é o resumo do usuário devolvido junto da sessão.
type SessionProfile struct {
	ID                  string  `json:"id"`
	Nome                string  `json:"nome"`
	Email               string  `json:"email"`
	Username            *string `json:"username,omitempty"`
	AvatarURL           *string `json:"avatar_url,omitempty"`
	Verificado          bool    `json:"verificado"`
	Premium             bool    `json:"premium"`
	OnboardingConcluido bool    `json:"onboarding_concluido"`
}

func newSessionProfile(u repo.Usuario) *SessionProfile {
	return &SessionProfile{
		ID:                  u.ID.String(),
		Nome:                u.Nome,
		Email:               u.Email,
		Username:            u.Username,
		AvatarURL:           u.AvatarURL,
		Verificado:          u.Verificado,
		Premium:             u.Premium,
		OnboardingConcluido: u.OnboardingConcluido,
	}
}

// Register cria a conta e já abre uma sessão.
func (s *AuthService) Register(ctx context.Context, nome, email, password string) (*LoginResult, error) {
	hash, err := auth.Hash(password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUsuario(ctx, repo.CreateUsuarioParams{
		Nome:      strings.TrimSpace(nome),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		SenhaHash: hash,
	})
	if err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}

	log.Ctx(ctx).Info().Str("usuario_id", user.ID.String()).Msg("conta criada")
	return s.issue(ctx, user)
}

// Login autentica por email e senha.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.repo.GetUsuarioByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("login: usuário não encontrado")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, needsRehash, err := auth.Verify(password, user.SenhaHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: verify password failed")
		return nil, ErrInvalidCredentials
	}
	if !ok {
		log.Warn().Msg("login: senha inválida")
		return nil, ErrInvalidCredentials
	}
	if !user.Ativo {
		return nil, ErrAccountDisabled
	}

	if needsRehash {
		if hash, err := auth.Hash(password); err == nil {
			if err := s.repo.UpdateSenhaHash(ctx, user.ID, hash); err != nil {
				log.Warn().Err(err).Msg("login: rehash da senha falhou")
			}
		}
	}

	return s.issue(ctx, user)
}

// Refresh troca refresh token por novos tokens; o anterior é revogado.
func (s *AuthService) Refresh(ctx context.Context, rawToken string) (*LoginResult, error) {
	if rawToken == "" {
		return nil, ErrRefreshInvalid
	}

	hash := auth.HashRefreshToken(rawToken)
	record, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	if record.Revogado || util.Now().After(record.Expiracao) || record.Audience != auth.Audience {
		return nil, ErrRefreshInvalid
	}

	redisKey := auth.RefreshRedisKey(hash)
	status, err := s.redis.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRefreshInvalid
	}
	if err != nil {
		return nil, err
	}
	if status != refreshActive {
		return nil, ErrRefreshInvalid
	}

	user, err := s.repo.GetUsuarioByID(ctx, record.Subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}
	if !user.Ativo {
		return nil, ErrAccountDisabled
	}

	// Revoga token anterior (DB + Redis) antes de emitir o novo
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	return s.issue(ctx, user)
}

// Logout revoga refresh token atual.
func (s *AuthService) Logout(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	hash := auth.HashRefreshToken(rawToken)
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if err := s.redis.Del(ctx, auth.RefreshRedisKey(hash)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// GetMe retorna perfil e papéis do subject da sessão.
func (s *AuthService) GetMe(ctx context.Context, subject uuid.UUID) (*SessionProfile, []string, error) {
	user, err := s.repo.GetUsuarioByID(ctx, subject)
	if err != nil {
		return nil, nil, err
	}
	if !user.Ativo {
		return nil, nil, ErrAccountDisabled
	}
	return newSessionProfile(user), rolesFor(user), nil
}

func (s *AuthService) issue(ctx context.Context, user repo.Usuario) (*LoginResult, error) {
	roles := rolesFor(user)
	token, accessExp, err := s.jwt.GenerateAccessToken(user.ID.String(), roles)
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	expires := util.Now().Add(s.refreshTTL)
	if err := s.persistRefresh(ctx, user.ID, refreshHash, expires); err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:   token,
		AccessExpiry:  accessExp,
		RefreshToken:  rawRefresh,
		RefreshExpiry: expires,
		Subject:       user.ID,
		Roles:         roles,
		Profile:       newSessionProfile(user),
	}, nil
}

func (s *AuthService) persistRefresh(ctx context.Context, subject uuid.UUID, hash string, expires time.Time) error {
	_, err := s.repo.InsertRefreshToken(ctx, repo.InsertRefreshTokenParams{
		ID:        uuid.New(),
		Subject:   subject,
		Audience:  auth.Audience,
		TokenHash: hash,
		Expiracao: expires,
		CriadoEm:  util.Now(),
	})
	if err != nil {
		return err
	}

	return s.redis.Set(ctx, auth.RefreshRedisKey(hash), refreshActive, time.Until(expires)).Err()
}

func rolesFor(user repo.Usuario) []string {
	roles := []string{RoleMembro}
	if user.Premium {
		roles = appendIfMissing(roles, RolePremium)
	}
	return roles
}

func appendIfMissing(values []string, value string) []string {
	value = strings.ToUpper(strings.TrimSpace(value))
	if value == "" {
		return values
	}
	for _, existing := range values {
		if existing == value {
			return values
		}
	}
	return append(values, value)
}
