package manutencao

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Notifier avisa a operação quando uma rodada de limpeza falha.
type Notifier interface {
	Notify(ctx context.Context, alerta Alerta) error
}

type Alerta struct {
	Titulo     string
	Texto      string
	Severidade string
}

// WebhookNotifier posta no formato de incoming webhook do Slack ({"text": ...}).
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	if url == "" {
		return nil
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, alerta Alerta) error {
	if n == nil {
		return errors.New("webhook de alerta não configurado")
	}

	body, err := json.Marshal(map[string]string{"text": formatarAlerta(alerta)})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook respondeu %d", resp.StatusCode)
	}
	return nil
}

func formatarAlerta(a Alerta) string {
	prefixo := ":information_source:"
	switch a.Severidade {
	case "warning":
		prefixo = ":warning:"
	case "critical":
		prefixo = ":rotating_light:"
	}
	if a.Titulo != "" {
		return prefixo + " *" + a.Titulo + "*\n" + a.Texto
	}
	return prefixo + " " + a.Texto
}
