package storage

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
)

// ErrTooLarge indica arquivo acima de UPLOAD_MAX_BYTES.
var ErrTooLarge = errors.New("arquivo excede o tamanho máximo")

// ReadFile carrega um arquivo de formulário respeitando max bytes e devolve
// também o content-type informado ou detectado.
func ReadFile(fh *multipart.FileHeader, max int64) ([]byte, string, error) {
	if fh.Size > max {
		return nil, "", ErrTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > max {
		return nil, "", ErrTooLarge
	}

	ct := fh.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	return data, ct, nil
}
