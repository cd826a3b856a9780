package websocket

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"family-taxi/internal/middleware"
	"family-taxi/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newServer(t *testing.T, userID uint) (*Manager, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextRole, models.RolePassenger)
	}, m.Handler())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return m, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, m *Manager, url string, userID uint) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for m.Connections(userID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client was not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func TestManager_PushesTripStatus(t *testing.T) {
	m, url := newServer(t, 7)
	conn := dial(t, m, url, 7)

	driverID := uint(3)
	m.NotifyTripStatus([]uint{7, 99}, models.TripStatusUpdate{
		TripID:   11,
		Status:   models.TripStatusAccepted,
		Event:    "accepted",
		DriverID: &driverID,
	})

	msg := readMessage(t, conn)
	if string(msg["type"]) != `"`+TripStatusUpdateType+`"` {
		t.Fatalf("type = %s", msg["type"])
	}
	var payload models.TripStatusUpdate
	if err := json.Unmarshal(msg["payload"], &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.TripID != 11 || payload.Status != models.TripStatusAccepted {
		t.Errorf("payload = %+v", payload)
	}
}

func TestManager_PushesDriverLocation(t *testing.T) {
	m, url := newServer(t, 5)
	conn := dial(t, m, url, 5)

	m.NotifyDriverLocation(5, 2, 21.03, 105.85)

	msg := readMessage(t, conn)
	if string(msg["type"]) != `"`+DriverLocationUpdateType+`"` {
		t.Fatalf("type = %s", msg["type"])
	}
	var payload struct {
		TripID uint    `json:"trip_id"`
		Lat    float64 `json:"lat"`
		Lng    float64 `json:"lng"`
	}
	if err := json.Unmarshal(msg["payload"], &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.TripID != 2 || payload.Lat != 21.03 || payload.Lng != 105.85 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestManager_AnswersPing(t *testing.T) {
	m, url := newServer(t, 1)
	conn := dial(t, m, url, 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg := readMessage(t, conn)
	if string(msg["type"]) != `"pong"` {
		t.Errorf("type = %s, want pong", msg["type"])
	}
}

func TestManager_UnregistersOnClose(t *testing.T) {
	m, url := newServer(t, 4)
	conn := dial(t, m, url, 4)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for m.Connections(4) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client still registered after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
	// Отправка отключенному пользователю не паникует
	m.NotifyTripStatus([]uint{4}, models.TripStatusUpdate{TripID: 1})
}

func TestHandler_RejectsPlainHTTP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewManager(slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { c.Set(middleware.ContextUserID, uint(1)) }, m.Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ws", nil))
	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
