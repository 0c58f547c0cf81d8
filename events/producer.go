package events

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/IBM/sarama"

	"healthbrief/types"
)

// Producer publishes article approval events. Messages are keyed by article
// ID so repeated approvals of one article stay ordered within a partition.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer connects a synchronous producer to the given brokers.
func NewProducer(brokers []string, topic string) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 5
	saramaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return &Producer{producer: producer, topic: topic}, nil
}

// PublishArticleApproved sends one approval event and waits for the ack.
func (p *Producer) PublishArticleApproved(event types.ArticleApprovedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal approval event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.ArticleID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("failed to publish approval event: %w", err)
	}

	log.Printf("📤 Published approval event for article %s (partition=%d, offset=%d)",
		event.ArticleID, partition, offset)
	return nil
}

// Close shuts the underlying producer down.
func (p *Producer) Close() error {
	return p.producer.Close()
}
