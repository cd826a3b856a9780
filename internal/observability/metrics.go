package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TripTransitionsTotal - переходы поездок по статусам. result: ok | rejected
	TripTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trip_transitions_total",
			Help: "Количество переходов поездок между статусами",
		},
		[]string{"transition", "result"},
	)

	// MatchOutcomesTotal - результаты подбора поездки для водителя
	MatchOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trip_match_outcomes_total",
			Help: "Результаты подбора ближайшей поездки",
		},
		[]string{"outcome"},
	)

	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trip_match_latency_seconds",
		Help:    "Длительность подбора поездки в секундах",
		Buckets: prometheus.DefBuckets,
	})

	// PushMessagesTotal - сообщения, отправленные через WebSocket
	PushMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_messages_total",
			Help: "Количество сообщений, отправленных через WebSocket",
		},
		[]string{"type", "delivered"},
	)

	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections",
		Help: "Текущее количество WebSocket соединений",
	})

	// DGISRequestsTotal - общее количество запросов к 2ГИС API
	DGISRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dgis_requests_total",
			Help: "Общее количество запросов к 2ГИС API",
		},
		[]string{"endpoint", "status", "cached"},
	)

	// DGISRequestDuration - длительность запросов к 2ГИС API
	DGISRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dgis_request_duration_seconds",
			Help:    "Длительность запросов к 2ГИС API в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "cached"},
	)

	GoogleMapsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "google_maps_requests_total",
			Help: "Общее количество запросов к Google Maps API",
		},
		[]string{"endpoint", "status"},
	)
)

// TrackTransition учитывает попытку перехода поездки
func TrackTransition(transition string, err error) {
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	TripTransitionsTotal.WithLabelValues(transition, result).Inc()
}

// TrackDGISRequest отслеживает запрос к 2ГИС API
func TrackDGISRequest(endpoint string, status string, cached bool, duration time.Duration) {
	cachedStr := strconv.FormatBool(cached)
	DGISRequestsTotal.WithLabelValues(endpoint, status, cachedStr).Inc()
	DGISRequestDuration.WithLabelValues(endpoint, cachedStr).Observe(duration.Seconds())
}
