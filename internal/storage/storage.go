package storage

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/novaplataforma/nova/internal/config"
)

// UploadInput representa uma operação de upload simples.
type UploadInput struct {
	Key          string
	Body         []byte
	ContentType  string
	CacheControl string
}

// UploadResult descreve o artefato persistido.
type UploadResult struct {
	URL  string
	ETag string
}

// Uploader define comportamento básico para armazenar blobs.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
}

// New escolhe o uploader conforme STORAGE_PROVIDER.
func New(cfg config.StorageConfig) (Uploader, error) {
	switch cfg.Provider {
	case "", "noop":
		return NoopUploader{}, nil
	case "local":
		return NewLocalUploader(cfg.LocalPath, cfg.PublicURL)
	case "s3", "r2":
		return NewS3Uploader(S3Config{
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			Bucket:       cfg.S3Bucket,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			PublicDomain: cfg.S3PublicURL,
		})
	default:
		return nil, fmt.Errorf("storage: provedor %s não suportado", cfg.Provider)
	}
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SafeName reduz um nome de arquivo enviado pelo cliente a caracteres seguros para chave.
func SafeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")
	if name == "" {
		return "arquivo"
	}
	if len(name) > 80 {
		name = name[len(name)-80:]
	}
	return name
}

// Key junta segmentos em uma chave de objeto sem barras duplicadas.
func Key(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			clean = append(clean, p)
		}
	}
	return strings.Join(clean, "/")
}
