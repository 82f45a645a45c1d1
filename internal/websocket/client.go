package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения
	maxMessageSize = 4 * 1024

	sendBufferSize = 64
)

type ClientMessageHandler interface {
	// HandleMessage возвращает только ошибки, которые можно показать клиенту
	HandleMessage(client *Client, msg *InboundMessage) error
}

// Client одно WebSocket подключение к комнате
type Client struct {
	ID            uuid.UUID
	RoomID        uuid.UUID
	ParticipantID uuid.UUID
	Conn          *websocket.Conn

	connectionID string
	send         chan []byte
	done         chan struct{}
	finish       chan struct{}
	closeOnce    sync.Once
	finishOnce   sync.Once
	log          *logrus.Entry
}

func NewClient(conn *websocket.Conn, roomID uuid.UUID, connectionID string, participantID uuid.UUID) *Client {
	id := uuid.New()
	return &Client{
		ID:            id,
		RoomID:        roomID,
		ParticipantID: participantID,
		Conn:          conn,
		connectionID:  connectionID,
		send:          make(chan []byte, sendBufferSize),
		done:          make(chan struct{}),
		finish:        make(chan struct{}),
		log: logrus.WithFields(logrus.Fields{
			"component":     "client",
			"client_id":     id,
			"room_id":       roomID,
			"connection_id": connectionID,
		}),
	}
}

func (c *Client) ConnectionID() string {
	return c.connectionID
}

func (c *Client) closed() bool {
	select {
	case <-c.done:
		return true
	case <-c.finish:
		return true
	default:
		return false
	}
}

// Enqueue не блокирует: закрытый клиент или полная очередь дают false
func (c *Client) Enqueue(payload []byte) bool {
	if c.closed() {
		return false
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// End ставит последнее сообщение и просит WritePump закрыть соединение после отправки
func (c *Client) End(payload []byte) {
	if payload != nil && !c.Enqueue(payload) && !c.closed() {
		c.log.Warn("send queue full, final message dropped")
	}
	c.finishOnce.Do(func() { close(c.finish) })
}

// Close закрывает соединение немедленно
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// Done закрывается вместе с клиентом
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// SendMessage сериализует и ставит в очередь одно сообщение
func (c *Client) SendMessage(msg any) error {
	data, err := Encode(msg)
	if err != nil {
		return err
	}
	if !c.Enqueue(data) {
		if c.closed() {
			return ErrClientClosed
		}
		return ErrClientQueueFull
	}
	return nil
}

func (c *Client) SendError(message string) {
	if err := c.SendMessage(NewErrorMessage(message)); err != nil {
		c.log.WithError(err).Warn("failed to queue error message")
	}
}

// ReadPump читает сообщения от клиента; onClose вызывается при любом завершении
func (c *Client) ReadPump(handler ClientMessageHandler, onClose func()) {
	defer func() {
		c.Close()
		if onClose != nil {
			onClose()
		}
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Info("websocket closed unexpectedly")
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			c.SendError(ErrInvalidMessage.Error())
			continue
		}

		if handler == nil {
			continue
		}
		if err := handler.HandleMessage(c, &msg); err != nil {
			c.SendError(err.Error())
		}
	}
}

// WritePump отправляет сообщения клиенту
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			if err := c.write(websocket.TextMessage, message); err != nil {
				return
			}

		case <-c.finish:
			// Досылаем очередь, затем закрываем
			for {
				select {
				case message := <-c.send:
					if err := c.write(websocket.TextMessage, message); err != nil {
						return
					}
					continue
				default:
				}
				break
			}
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.Conn.WriteMessage(messageType, data); err != nil {
		c.log.WithError(err).Debug("write failed")
		return err
	}
	return nil
}
