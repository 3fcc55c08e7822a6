package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/radieske/esports-bet-core/pkg/contracts/events"
)

// MessageWriter é o subconjunto de *kafka.Writer usado aqui
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher publica os eventos de aposta, um writer por tópico
type KafkaPublisher struct {
	Placed    MessageWriter
	Cancelled MessageWriter
	Settled   MessageWriter

	Now func() time.Time
}

func NewKafkaPublisher(placed, cancelled, settled MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{Placed: placed, Cancelled: cancelled, Settled: settled, Now: time.Now}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = p.Now().UnixMilli()
	return write(ctx, p.Placed, e.BetID, e)
}

func (p *KafkaPublisher) PublishBetCancelled(ctx context.Context, e events.BetCancelled) error {
	e.TsUnixMs = p.Now().UnixMilli()
	return write(ctx, p.Cancelled, e.BetID, e)
}

func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	e.TsUnixMs = p.Now().UnixMilli()
	return write(ctx, p.Settled, e.BetID, e)
}

// chave = betID mantém a ordem dos eventos de uma mesma aposta na partição.
// Writer nil desliga o tópico (o worker de liquidação não emite bet_placed)
func write(ctx context.Context, w MessageWriter, key string, v any) error {
	if w == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b}); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}
