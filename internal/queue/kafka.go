package queue

import (
	"context"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/emrgen/plm/internal/model"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var _ ActivityPublisher = (*Kafka)(nil)

// Kafka publishes activity records as JSON messages keyed by account.
type Kafka struct {
	producer *kafka.Producer
	topic    string
	done     chan struct{}
}

// NewKafka connects a producer to brokers (comma separated).
func NewKafka(brokers, topic string) (*Kafka, error) {
	if topic == "" {
		topic = DefaultActivityTopic
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": strings.TrimSpace(brokers),
		"client.id":         "plm-" + uuid.NewString(),
		"acks":              "all",
	})
	if err != nil {
		return nil, err
	}

	k := &Kafka{producer: producer, topic: topic, done: make(chan struct{})}
	go k.deliveryReports()

	return k, nil
}

// deliveryReports drains the producer event channel and logs failed deliveries.
func (k *Kafka) deliveryReports() {
	defer close(k.done)
	for e := range k.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				logrus.Warnf("activity delivery failed: %v", ev.TopicPartition.Error)
			}
		case kafka.Error:
			logrus.Warnf("kafka producer error: %v", ev)
		}
	}
}

func (k *Kafka) Publish(_ context.Context, activity *model.ActivityLog) error {
	value, err := activity.MarshalBinary()
	if err != nil {
		return err
	}

	return k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &k.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(activity.Account),
		Value: value,
	}, nil)
}

// Close flushes pending messages for up to five seconds.
func (k *Kafka) Close() {
	if remaining := k.producer.Flush(5000); remaining > 0 {
		logrus.Warnf("kafka producer closed with %d undelivered activities", remaining)
	}
	k.producer.Close()
	<-k.done
}
