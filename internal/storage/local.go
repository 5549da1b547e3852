package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader grava arquivos em disco e os expõe sob PublicURL.
type LocalUploader struct {
	basePath  string
	publicURL string
}

// NewLocalUploader garante o diretório base e devolve o uploader.
func NewLocalUploader(basePath, publicURL string) (*LocalUploader, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, errors.New("storage: STORAGE_LOCAL_PATH ausente")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, err
	}
	return &LocalUploader{basePath: basePath, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (u *LocalUploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	key := strings.TrimLeft(filepath.ToSlash(filepath.Clean("/"+input.Key)), "/")
	if key == "" || key == "." {
		return nil, errors.New("storage: chave do objeto obrigatória")
	}
	if len(input.Body) == 0 {
		return nil, errors.New("storage: corpo vazio")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target := filepath.Join(u.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, err
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, input.Body, 0o644); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}

	sum := sha256.Sum256(input.Body)
	return &UploadResult{URL: u.publicURL + "/" + key, ETag: hex.EncodeToString(sum[:])}, nil
}

// Handler serve os arquivos gravados; montado em /arquivos.
func (u *LocalUploader) Handler(prefix string) http.Handler {
	return http.StripPrefix(prefix, http.FileServer(http.Dir(u.basePath)))
}
