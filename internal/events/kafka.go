// Package events публикует события поездок во внешнюю шину (Kafka) для
// аналитики и смежных сервисов. Публикация асинхронная и негарантированная.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"family-taxi/internal/models"

	"github.com/segmentio/kafka-go"
)

const (
	DefaultTripTopic     = "trip-events"
	DefaultLocationTopic = "driver-locations"
	writeTimeout         = 2 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher реализует services.Notifier поверх kafka-go
type KafkaPublisher struct {
	writer        messageWriter
	tripTopic     string
	locationTopic string
	log           *slog.Logger
}

type Config struct {
	Brokers       []string
	TripTopic     string
	LocationTopic string
}

// newBalancer - партиция выбирается по хешу ключа, события одной поездки попадают в одну партицию
func newBalancer() kafka.Balancer {
	return &kafka.Hash{}
}

func NewKafkaPublisher(cfg Config, log *slog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     newBalancer(),
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		WriteTimeout: writeTimeout,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Warn("не удалось отправить события в Kafka", "count", len(messages), "error", err)
			}
		},
	}
	return newPublisher(w, cfg, log)
}

func newPublisher(w messageWriter, cfg Config, log *slog.Logger) *KafkaPublisher {
	p := &KafkaPublisher{writer: w, tripTopic: cfg.TripTopic, locationTopic: cfg.LocationTopic, log: log}
	if p.tripTopic == "" {
		p.tripTopic = DefaultTripTopic
	}
	if p.locationTopic == "" {
		p.locationTopic = DefaultLocationTopic
	}
	return p
}

// TripEvent - сообщение в топике событий поездок
type TripEvent struct {
	models.TripStatusUpdate
	Recipients []uint `json:"recipients"`
}

type DriverLocationEvent struct {
	TripID      uint      `json:"trip_id"`
	PassengerID uint      `json:"passenger_id"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	At          time.Time `json:"at"`
}

func (p *KafkaPublisher) NotifyTripStatus(userIDs []uint, update models.TripStatusUpdate) {
	p.publish(p.tripTopic, update.TripID, TripEvent{TripStatusUpdate: update, Recipients: userIDs})
}

func (p *KafkaPublisher) NotifyDriverLocation(passengerID, tripID uint, lat, lng float64) {
	p.publish(p.locationTopic, tripID, DriverLocationEvent{
		TripID:      tripID,
		PassengerID: passengerID,
		Latitude:    lat,
		Longitude:   lng,
		At:          time.Now().UTC(),
	})
}

// publish - ключ сообщения id поездки, чтобы события одной поездки шли по порядку
func (p *KafkaPublisher) publish(topic string, tripID uint, v interface{}) {
	value, err := json.Marshal(v)
	if err != nil {
		p.log.Error("ошибка кодирования события", "topic", topic, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	msg := kafka.Message{Topic: topic, Key: []byte(strconv.FormatUint(uint64(tripID), 10)), Value: value}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warn("ошибка публикации события", "topic", topic, "trip_id", tripID, "error", err)
	}
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
