package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"ms-guestlist/internal/logger"
	"ms-guestlist/internal/models"
)

// Producer streams guest and prize changes to Kafka. The engine treats it as
// a fire-and-forget notification hook; delivery transport is a collaborator
// concern.
type Producer struct {
	GuestWriter *kafka.Writer
	PrizeWriter *kafka.Writer
	Logger      *logger.Logger
}

func NewProducer(brokers []string, guestTopic, prizeTopic string, log *logger.Logger) *Producer {
	return &Producer{
		GuestWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   guestTopic,
		}),
		PrizeWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   prizeTopic,
		}),
		Logger: log,
	}
}

// PublishGuestChange streams a guest mutation event, keyed by account so one
// wedding's events stay ordered.
func (p *Producer) PublishGuestChange(change models.GuestChange) error {
	msgBytes, err := json.Marshal(change)
	if err != nil {
		return err
	}

	if p.Logger != nil {
		p.Logger.LogKafka("PUBLISH", p.GuestWriter.Topic, change.Action+" "+change.GuestID)
	}

	return p.GuestWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(change.AccountID),
			Value: msgBytes,
		},
	)
}

// PublishPrizeDrawn streams a recorded doorprize draw.
func (p *Producer) PublishPrizeDrawn(drawn models.PrizeDrawn) error {
	msgBytes, err := json.Marshal(drawn)
	if err != nil {
		return err
	}

	if p.Logger != nil {
		p.Logger.LogKafka("PUBLISH", p.PrizeWriter.Topic, "prize_drawn "+drawn.PrizeID)
	}

	return p.PrizeWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(drawn.AccountID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	if err := p.GuestWriter.Close(); err != nil {
		return err
	}
	return p.PrizeWriter.Close()
}
