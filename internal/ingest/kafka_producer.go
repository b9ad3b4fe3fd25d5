package ingest

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/example/carpool-driver/internal/models"
)

// LocationEvent is the message mirrored to the location topic.
type LocationEvent struct {
	DriverID int64           `json:"driver_id"`
	Location models.Location `json:"location"`
	SentAt   time.Time       `json:"sent_at"`
}

type KafkaProducer struct {
	writer *kafka.Writer
}

func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.Hash{}})
	return &KafkaProducer{writer: w}
}

func (k *KafkaProducer) Name() string { return "kafka" }

// Publish keys messages by driver so one driver's positions stay ordered.
func (k *KafkaProducer) Publish(ctx context.Context, driverID int64, loc models.Location) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := locationMessage(driverID, loc, time.Now())
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, msg)
}

func (k *KafkaProducer) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

func locationMessage(driverID int64, loc models.Location, at time.Time) (kafka.Message, error) {
	b, err := json.Marshal(LocationEvent{DriverID: driverID, Location: loc, SentAt: at.UTC()})
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Key: []byte(strconv.FormatInt(driverID, 10)), Value: b, Time: at}, nil
}
