package auth

import (
	"errors"

	"github.com/alexedwards/argon2id"
)

var params = &argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// ErrWeakPassword indica senha abaixo do mínimo aceito no cadastro.
var ErrWeakPassword = errors.New("senha deve ter pelo menos 8 caracteres")

// Hash gera um hash Argon2id com os parâmetros embutidos.
func Hash(password string) (string, error) {
	if len(password) < 8 {
		return "", ErrWeakPassword
	}
	return argon2id.CreateHash(password, params)
}

// Verify compara a senha com o hash e informa se os parâmetros ficaram defasados.
func Verify(password, encodedHash string) (ok bool, needsRehash bool, err error) {
	match, stored, err := argon2id.CheckHash(password, encodedHash)
	if err != nil || !match {
		return false, false, err
	}
	return true, stored.Memory < params.Memory || stored.Iterations < params.Iterations, nil
}
