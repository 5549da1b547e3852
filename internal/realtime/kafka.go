package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// KafkaMirror espelha cada mudança num tópico para consumidores externos
// (analytics, auditoria). A chave é a tabela para manter a ordem por tabela.
type KafkaMirror struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaMirror(brokers []string, topic string) (*KafkaMirror, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Flush.Frequency = 50 * time.Millisecond
	cfg.Producer.MaxMessageBytes = 1024 * 1024

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("realtime: criar producer kafka: %w", err)
	}
	return NewKafkaMirrorWithProducer(producer, topic), nil
}

func NewKafkaMirrorWithProducer(producer sarama.SyncProducer, topic string) *KafkaMirror {
	return &KafkaMirror{producer: producer, topic: topic}
}

func (k *KafkaMirror) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("realtime: serializar evento: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic:     k.topic,
		Key:       sarama.StringEncoder(ev.Tabela),
		Value:     sarama.ByteEncoder(payload),
		Timestamp: ev.Em,
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("realtime: enviar para %s: %w", k.topic, err)
	}
	return nil
}

func (k *KafkaMirror) Close() error {
	return k.producer.Close()
}
