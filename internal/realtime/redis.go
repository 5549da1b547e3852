package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisBroker distribui eventos entre instâncias da API via pub/sub.
type RedisBroker struct {
	client  *redis.Client
	channel string
	sink    Publisher
	logger  zerolog.Logger
}

// NewRedisBroker publica em channel e, em Run, repassa o que chega para sink.
func NewRedisBroker(client *redis.Client, channel string, sink Publisher, logger zerolog.Logger) *RedisBroker {
	return &RedisBroker{client: client, channel: channel, sink: sink, logger: logger}
}

func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("realtime: serializar evento: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("realtime: publish redis: %w", err)
	}
	return nil
}

// Run assina o canal e bloqueia até ctx terminar.
func (b *RedisBroker) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("realtime: subscribe %s: %w", b.channel, err)
	}
	b.logger.Info().Str("channel", b.channel).Msg("realtime: assinatura ativa")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.forward(ctx, msg.Payload)
		}
	}
}

func (b *RedisBroker) forward(ctx context.Context, payload string) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		b.logger.Warn().Err(err).Msg("realtime: payload inválido no canal")
		return
	}
	if err := b.sink.Publish(ctx, ev); err != nil {
		b.logger.Warn().Err(err).Str("tabela", ev.Tabela).Msg("realtime: evento descartado")
	}
}
