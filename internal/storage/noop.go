package storage

import (
	"context"
	"errors"
)

// ErrNotConfigured sinaliza que nenhum backend de arquivos foi configurado.
var ErrNotConfigured = errors.New("storage: uploader não configurado")

// NoopUploader recusa todo upload; útil em ambientes sem armazenamento.
type NoopUploader struct{}

func (NoopUploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	return nil, ErrNotConfigured
}
