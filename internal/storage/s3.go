package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config descreve um bucket compatível com S3 (AWS ou R2).
type S3Config struct {
	Endpoint     string
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	PublicDomain string
	HTTPClient   *http.Client
}

// S3Uploader envia objetos pelo cliente minio, com endereçamento por caminho.
type S3Uploader struct {
	cfg    S3Config
	client *minio.Client
	base   string
}

func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	endpoint, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("storage: endpoint inválido: %w", err)
	}

	opts := &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       endpoint.Scheme == "https",
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	}
	if cfg.HTTPClient != nil && cfg.HTTPClient.Transport != nil {
		opts.Transport = cfg.HTTPClient.Transport
	}

	client, err := minio.New(endpoint.Host, opts)
	if err != nil {
		return nil, fmt.Errorf("storage: cliente s3: %w", err)
	}
	return &S3Uploader{cfg: cfg, client: client, base: endpoint.Scheme + "://" + endpoint.Host}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	key := strings.TrimLeft(input.Key, "/")
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("storage: chave do objeto obrigatória")
	}
	if len(input.Body) == 0 {
		return nil, errors.New("storage: corpo vazio")
	}

	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	info, err := u.client.PutObject(ctx, u.cfg.Bucket, key, bytes.NewReader(input.Body), int64(len(input.Body)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: strings.TrimSpace(input.CacheControl),
	})
	if err != nil {
		if status := minio.ToErrorResponse(err).StatusCode; status != 0 {
			return nil, fmt.Errorf("storage: upload falhou (%d): %w", status, err)
		}
		return nil, fmt.Errorf("storage: upload falhou: %w", err)
	}

	escapedKey := (&url.URL{Path: key}).EscapedPath()
	publicURL := u.base + "/" + u.cfg.Bucket + "/" + escapedKey
	if domain := strings.TrimSpace(u.cfg.PublicDomain); domain != "" {
		publicURL = strings.TrimRight(domain, "/") + "/" + escapedKey
	}
	return &UploadResult{URL: publicURL, ETag: strings.Trim(info.ETag, `"`)}, nil
}

func (cfg S3Config) validate() error {
	required := []struct{ value, msg string }{
		{cfg.Endpoint, "endpoint do S3 ausente"},
		{cfg.Region, "região do S3 ausente"},
		{cfg.Bucket, "bucket do S3 ausente"},
		{cfg.AccessKey, "access key ausente"},
		{cfg.SecretKey, "secret key ausente"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return errors.New("storage: " + r.msg)
		}
	}
	if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return errors.New("storage: endpoint deve incluir protocolo http/https")
	}
	return nil
}
