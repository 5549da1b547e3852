package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("0123456789abcdef0123456789abcdef", time.Minute)

	token, exp, err := m.GenerateAccessToken("user-1", []string{"MEMBRO"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiração no passado: %s", exp)
	}

	claims, err := m.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "user-1" || len(claims.Roles) != 1 || claims.Roles[0] != "MEMBRO" {
		t.Fatalf("claims inesperadas: %+v", claims)
	}
}

func TestJWTExpirado(t *testing.T) {
	m := NewJWTManager("0123456789abcdef0123456789abcdef", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := m.GenerateAccessToken("user-1", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	m.now = time.Now
	if _, err := m.ParseAndValidate(token); err == nil {
		t.Fatal("token expirado deveria falhar")
	}
}

func TestJWTAudienceErrada(t *testing.T) {
	secret := "0123456789abcdef0123456789abcdef"
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-1",
		Audience:  jwt.ClaimStrings{"outro"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	m := NewJWTManager(secret, time.Minute)
	if _, err := m.ParseAndValidate(token); err == nil {
		t.Fatal("audience diferente deveria falhar")
	}
}

func TestHashVerify(t *testing.T) {
	if _, err := Hash("curta"); err != ErrWeakPassword {
		t.Fatalf("esperava ErrWeakPassword, veio %v", err)
	}

	hash, err := Hash("senha-forte-123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, rehash, err := Verify("senha-forte-123", hash)
	if err != nil || !ok || rehash {
		t.Fatalf("verify: ok=%v rehash=%v err=%v", ok, rehash, err)
	}
	ok, _, err = Verify("errada", hash)
	if err != nil || ok {
		t.Fatalf("senha errada aceita: ok=%v err=%v", ok, err)
	}
}

func TestRefreshToken(t *testing.T) {
	raw, hashed, err := GenerateRefreshToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if raw == hashed || HashRefreshToken(raw) != hashed {
		t.Fatal("hash do refresh inconsistente")
	}
	if !strings.HasPrefix(RefreshRedisKey(hashed), "nova:refresh:") {
		t.Fatalf("chave inesperada: %s", RefreshRedisKey(hashed))
	}
}
