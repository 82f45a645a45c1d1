package websocket

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Connection то, что хабу нужно от подключения
type Connection interface {
	ConnectionID() string
	// Enqueue ставит сообщение в очередь; false, если запись невозможна
	Enqueue(payload []byte) bool
	// End отправляет последнее сообщение и закрывает подключение
	End(payload []byte)
	Close()
}

// Hub реестр живых подключений по комнатам внутри процесса
type Hub struct {
	// Один мьютекс на изменение реестра и обход при рассылке
	mu      sync.Mutex
	rooms   map[uuid.UUID]map[Connection]struct{}
	stopped bool
	log     *logrus.Entry
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[uuid.UUID]map[Connection]struct{}),
		log:   logrus.WithField("component", "hub"),
	}
}

// Register добавляет подключение в комнату; после Shutdown возвращает false
func (h *Hub) Register(roomID uuid.UUID, conn Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return false
	}

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[Connection]struct{})
	}
	h.rooms[roomID][conn] = struct{}{}

	h.log.WithFields(logrus.Fields{
		"room_id":       roomID,
		"connection_id": conn.ConnectionID(),
	}).Debug("connection registered")
	return true
}

// Unregister удаляет подключение; false, если его уже не было
func (h *Hub) Unregister(roomID uuid.UUID, conn Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.removeUnsafe(roomID, conn)
}

func (h *Hub) removeUnsafe(roomID uuid.UUID, conn Connection) bool {
	room, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := room[conn]; !ok {
		return false
	}

	delete(room, conn)
	if len(room) == 0 {
		delete(h.rooms, roomID)
	}
	return true
}

// Broadcast отправляет сообщение всем подключениям комнаты
func (h *Hub) Broadcast(roomID uuid.UUID, payload []byte) int {
	return h.BroadcastExcept(roomID, payload, nil)
}

// BroadcastExcept отправляет сообщение всем, кроме exclude, и возвращает число получателей.
// Подключения, в которые нельзя писать, удаляются из реестра.
func (h *Hub) BroadcastExcept(roomID uuid.UUID, payload []byte, exclude Connection) int {
	h.mu.Lock()

	delivered := 0
	var dead []Connection
	for conn := range h.rooms[roomID] {
		if conn == exclude {
			continue
		}
		if conn.Enqueue(payload) {
			delivered++
			continue
		}
		dead = append(dead, conn)
	}
	for _, conn := range dead {
		h.removeUnsafe(roomID, conn)
	}

	h.mu.Unlock()

	for _, conn := range dead {
		h.log.WithFields(logrus.Fields{
			"room_id":       roomID,
			"connection_id": conn.ConnectionID(),
		}).Warn("dropping unwritable connection")
		conn.Close()
	}

	return delivered
}

// EndConnection завершает все подключения комнаты с данным connectionID
func (h *Hub) EndConnection(roomID uuid.UUID, connectionID string, payload []byte) int {
	h.mu.Lock()

	var ended []Connection
	for conn := range h.rooms[roomID] {
		if conn.ConnectionID() == connectionID {
			ended = append(ended, conn)
		}
	}
	for _, conn := range ended {
		h.removeUnsafe(roomID, conn)
	}

	h.mu.Unlock()

	for _, conn := range ended {
		conn.End(payload)
	}
	return len(ended)
}

// HasConnection есть ли в комнате подключение с таким connectionID
func (h *Hub) HasConnection(roomID uuid.UUID, connectionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.rooms[roomID] {
		if conn.ConnectionID() == connectionID {
			return true
		}
	}
	return false
}

// RoomSize количество подключений в комнате
func (h *Hub) RoomSize(roomID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.rooms[roomID])
}

// Shutdown завершает все подключения и очищает реестр
func (h *Hub) Shutdown(payload []byte) {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[uuid.UUID]map[Connection]struct{})
	h.stopped = true
	h.mu.Unlock()

	for _, room := range rooms {
		for conn := range room {
			conn.End(payload)
		}
	}
	h.log.Info("hub stopped")
}
