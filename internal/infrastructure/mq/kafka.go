package mq

import (
	"log"

	"github.com/IBM/sarama"
)

// Producer wraps a sarama sync producer
type Producer struct {
	producer sarama.SyncProducer
}

// NewProducer creates a Kafka sync producer
func NewProducer(brokers []string) (*Producer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, kafkaConfig)
	if err != nil {
		return nil, err
	}

	log.Println("✅ Kafka producer connected")
	return &Producer{producer: producer}, nil
}

// Send publishes a message to a topic
func (p *Producer) Send(topic, key, value string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}
	_, _, err := p.producer.SendMessage(msg)
	return err
}

// Close shuts down the producer
func (p *Producer) Close() error {
	return p.producer.Close()
}
