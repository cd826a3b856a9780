package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"family-taxi/internal/models"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestKafkaPublisher_TripStatus(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, Config{}, discard())

	driverID := uint(4)
	p.NotifyTripStatus([]uint{1, 4}, models.TripStatusUpdate{
		TripID:    12,
		Status:    models.TripStatusCompleted,
		Event:     "completed",
		DriverID:  &driverID,
		UpdatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	})

	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if msg.Topic != DefaultTripTopic || string(msg.Key) != "12" {
		t.Errorf("topic/key = %s/%s", msg.Topic, msg.Key)
	}
	var ev TripEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.TripID != 12 || ev.Status != models.TripStatusCompleted || len(ev.Recipients) != 2 {
		t.Errorf("event = %+v", ev)
	}
}

func TestKafkaPublisher_DriverLocation(t *testing.T) {
	w := &fakeWriter{}
	p := newPublisher(w, Config{LocationTopic: "locations"}, discard())

	p.NotifyDriverLocation(3, 8, 21.03, 105.85)

	if len(w.msgs) != 1 || w.msgs[0].Topic != "locations" || string(w.msgs[0].Key) != "8" {
		t.Fatalf("messages = %+v", w.msgs)
	}
	var ev DriverLocationEvent
	if err := json.Unmarshal(w.msgs[0].Value, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.PassengerID != 3 || ev.Latitude != 21.03 || ev.Longitude != 105.85 {
		t.Errorf("event = %+v", ev)
	}
}

func TestKafkaPublisher_WriteErrorIsSwallowed(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := newPublisher(w, Config{}, discard())
	p.NotifyTripStatus([]uint{1}, models.TripStatusUpdate{TripID: 1})
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
}

func TestBalancer_SameTripSamePartition(t *testing.T) {
	b := newBalancer()
	partitions := []int{0, 1, 2}

	first := b.Balance(kafka.Message{Key: []byte("42")}, partitions...)
	for i := 0; i < 4; i++ {
		if got := b.Balance(kafka.Message{Key: []byte("42")}, partitions...); got != first {
			t.Fatalf("call %d: partition %d, want %d", i, got, first)
		}
	}
}
