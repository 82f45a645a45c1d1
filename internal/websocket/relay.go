package websocket

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const presenceChannel = "rooms:presence"

// RelayEvent изменение присутствия, пересылаемое между экземплярами
type RelayEvent struct {
	Origin       string    `json:"origin"`
	RoomID       uuid.UUID `json:"room_id"`
	ConnectionID string    `json:"connection_id,omitempty"`
	Reason       EndReason `json:"reason,omitempty"`
}

// RelayHandler применяет чужие события к локальным подключениям
type RelayHandler interface {
	OnRoomChanged(ctx context.Context, roomID uuid.UUID)
	OnConnectionEnded(ctx context.Context, roomID uuid.UUID, connectionID string, reason EndReason)
}

// RedisRelay рассылка через Redis pub/sub, чтобы снимки доходили до сокетов на других экземплярах
type RedisRelay struct {
	client     *redis.Client
	channel    string
	instanceID string
	log        *logrus.Entry
}

func NewRedisRelay(client *redis.Client, instanceID string) *RedisRelay {
	return &RedisRelay{
		client:     client,
		channel:    presenceChannel,
		instanceID: instanceID,
		log: logrus.WithFields(logrus.Fields{
			"component": "relay",
			"instance":  instanceID,
		}),
	}
}

func (r *RedisRelay) PublishRoomChanged(ctx context.Context, roomID uuid.UUID) error {
	return r.publish(ctx, RelayEvent{Origin: r.instanceID, RoomID: roomID})
}

func (r *RedisRelay) PublishConnectionEnded(ctx context.Context, roomID uuid.UUID, connectionID string, reason EndReason) error {
	return r.publish(ctx, RelayEvent{
		Origin:       r.instanceID,
		RoomID:       roomID,
		ConnectionID: connectionID,
		Reason:       reason,
	})
}

func (r *RedisRelay) publish(ctx context.Context, event RelayEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Run слушает канал до отмены ctx
func (r *RedisRelay) Run(ctx context.Context, handler RelayHandler) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.log.Info("relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.dispatch(ctx, []byte(msg.Payload), handler)
		}
	}
}

// dispatch возвращает true, если событие передано обработчику
func (r *RedisRelay) dispatch(ctx context.Context, payload []byte, handler RelayHandler) bool {
	var event RelayEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		r.log.WithError(err).Warn("malformed relay event")
		return false
	}
	// Свои события уже разосланы локально
	if event.Origin == r.instanceID || event.RoomID == uuid.Nil {
		return false
	}

	if event.ConnectionID != "" {
		handler.OnConnectionEnded(ctx, event.RoomID, event.ConnectionID, event.Reason)
		return true
	}
	handler.OnRoomChanged(ctx, event.RoomID)
	return true
}
