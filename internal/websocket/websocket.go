package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"family-taxi/internal/middleware"
	"family-taxi/internal/models"
	"family-taxi/internal/observability"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Типы сообщений WebSocket
const (
	TripStatusUpdateType     = "TRIP_STATUS_UPDATE"
	DriverLocationUpdateType = "DRIVER_LOCATION_UPDATE"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Message формат сообщения WebSocket
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type client struct {
	conn   *websocket.Conn
	userID uint
	send   chan []byte
}

// Manager хранит подключения пользователей и рассылает им события поездок.
// Доставка негарантированная: если клиента нет или его буфер полон,
// сообщение отбрасывается.
type Manager struct {
	mu            sync.RWMutex
	clientsByUser map[uint]map[*client]struct{}
	upgrader      websocket.Upgrader
	log           *slog.Logger
}

func NewManager(log *slog.Logger) *Manager {
	return &Manager{
		clientsByUser: make(map[uint]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Разрешаем подключения с любых источников
			},
		},
		log: log,
	}
}

// Handler апгрейдит соединение. Должен стоять за middleware.JWTAuth.
func (m *Manager) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := middleware.Principal(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "требуется авторизация"})
			return
		}
		if !websocket.IsWebSocketUpgrade(c.Request) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Требуется WebSocket соединение"})
			return
		}

		conn, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade уже ответил клиенту
			m.log.Warn("ошибка апгрейда WebSocket", "user_id", p.UserID, "error", err)
			return
		}

		cl := &client{conn: conn, userID: p.UserID, send: make(chan []byte, sendBuffer)}
		m.register(cl)
		go m.writePump(cl)
		go m.readPump(cl)
	}
}

// Connections количество открытых соединений пользователя
func (m *Manager) Connections(userID uint) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clientsByUser[userID])
}

// SendToUser ставит сообщение в очередь всех соединений пользователя
func (m *Manager) SendToUser(userID uint, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		m.log.Error("ошибка кодирования сообщения WebSocket", "type", msg.Type, "error", err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := m.clientsByUser[userID]
	if len(conns) == 0 {
		observability.PushMessagesTotal.WithLabelValues(msg.Type, "false").Inc()
		return
	}
	for cl := range conns {
		select {
		case cl.send <- data:
			observability.PushMessagesTotal.WithLabelValues(msg.Type, "true").Inc()
		default:
			observability.PushMessagesTotal.WithLabelValues(msg.Type, "false").Inc()
			m.log.Warn("буфер WebSocket переполнен, сообщение отброшено", "user_id", userID, "type", msg.Type)
		}
	}
}

// NotifyTripStatus отправляет обновление статуса всем участникам поездки
func (m *Manager) NotifyTripStatus(userIDs []uint, update models.TripStatusUpdate) {
	for _, id := range userIDs {
		m.SendToUser(id, Message{Type: TripStatusUpdateType, Payload: update})
	}
}

// NotifyDriverLocation отправляет пассажиру координаты водителя
func (m *Manager) NotifyDriverLocation(passengerID, tripID uint, lat, lng float64) {
	m.SendToUser(passengerID, Message{
		Type: DriverLocationUpdateType,
		Payload: map[string]interface{}{
			"trip_id": tripID,
			"lat":     lat,
			"lng":     lng,
		},
	})
}

// Shutdown закрывает все соединения
func (m *Manager) Shutdown(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, conns := range m.clientsByUser {
		for cl := range conns {
			close(cl.send)
			observability.WebSocketConnections.Dec()
		}
		delete(m.clientsByUser, userID)
	}
}

func (m *Manager) register(cl *client) {
	m.mu.Lock()
	if _, ok := m.clientsByUser[cl.userID]; !ok {
		m.clientsByUser[cl.userID] = make(map[*client]struct{})
	}
	m.clientsByUser[cl.userID][cl] = struct{}{}
	m.mu.Unlock()

	observability.WebSocketConnections.Inc()
	m.log.Debug("WebSocket клиент подключен", "user_id", cl.userID)
}

func (m *Manager) unregister(cl *client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, ok := m.clientsByUser[cl.userID]
	if !ok {
		return
	}
	if _, exists := conns[cl]; !exists {
		return
	}
	delete(conns, cl)
	if len(conns) == 0 {
		delete(m.clientsByUser, cl.userID)
	}
	close(cl.send)
	observability.WebSocketConnections.Dec()
	m.log.Debug("WebSocket клиент отключен", "user_id", cl.userID)
}

// readPump читает входящие сообщения, отвечает на ping от клиента и
// снимает регистрацию при разрыве
func (m *Manager) readPump(cl *client) {
	defer m.unregister(cl)

	cl.conn.SetReadLimit(4096)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.log.Debug("WebSocket соединение прервано", "user_id", cl.userID, "error", err)
			}
			return
		}

		var data struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &data); err != nil {
			continue
		}
		if data.Type == "ping" {
			pong, _ := json.Marshal(map[string]interface{}{"type": "pong", "time": time.Now().Unix()})
			m.mu.RLock()
			if _, registered := m.clientsByUser[cl.userID][cl]; registered {
				select {
				case cl.send <- pong:
				default:
				}
			}
			m.mu.RUnlock()
		}
	}
}

// writePump единственный писатель в соединение
func (m *Manager) writePump(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()

	for {
		select {
		case data, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				m.log.Debug("ошибка отправки WebSocket сообщения", "user_id", cl.userID, "error", err)
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
