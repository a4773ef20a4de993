package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"chat_core_service/internal/chat/domain"
	"chat_core_service/pkg/logger"
)

// userChannel redis channel carrying one user's events
func userChannel(userID string) string {
	return fmt.Sprintf("chat:user:%s", userID)
}

// RedisKafkaNotifier best-effort notifier, redis pub/sub 推給在線裝置,
// kafka 留事件流給下游. 失敗只記 log, 不影響已 commit 的資料
type RedisKafkaNotifier struct {
	client *redis.Client
	writer *kafka.Writer
	ctx    context.Context
}

// NewRedisKafkaNotifier create RedisKafkaNotifier, writer may be nil
func NewRedisKafkaNotifier(client *redis.Client, writer *kafka.Writer) *RedisKafkaNotifier {
	return &RedisKafkaNotifier{
		client: client,
		writer: writer,
		ctx:    context.Background(),
	}
}

// NotifyUser publish one event to one user's channel
func (n *RedisKafkaNotifier) NotifyUser(userID string, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Error("notifier marshal failed", zap.Error(err))
		return
	}
	if err := n.client.Publish(n.ctx, userChannel(userID), data).Err(); err != nil {
		logger.Log.Warn("notifier publish failed",
			zap.String("user_id", userID),
			zap.String("event", string(event.Name)),
			zap.Error(err),
		)
	}
	n.appendToStream(event, data)
}

// NotifyConversation fan out to every given member
func (n *RedisKafkaNotifier) NotifyConversation(conversationID string, memberIDs []string, event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Log.Error("notifier marshal failed", zap.Error(err))
		return
	}
	for _, id := range memberIDs {
		if err := n.client.Publish(n.ctx, userChannel(id), data).Err(); err != nil {
			logger.Log.Warn("notifier publish failed",
				zap.String("user_id", id),
				zap.String("event", string(event.Name)),
				zap.Error(err),
			)
		}
	}
	n.appendToStream(event, data)
}

func (n *RedisKafkaNotifier) appendToStream(event domain.Event, data []byte) {
	if n.writer == nil {
		return
	}
	err := n.writer.WriteMessages(n.ctx, kafka.Message{
		Key:   []byte(event.ConversationID),
		Value: data,
	})
	if err != nil {
		logger.Log.Warn("notifier kafka append failed",
			zap.String("event", string(event.Name)),
			zap.Error(err),
		)
	}
}

// Subscribe listen one user's channel, used by the push transport layer
func (n *RedisKafkaNotifier) Subscribe(ctx context.Context, userID string, handler func(event domain.Event)) {
	sub := n.client.Subscribe(n.ctx, userChannel(userID))
	go func() {
		ch := sub.Channel()
		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}
				var event domain.Event
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					logger.Log.Error("notifier payload unmarshal failed", zap.Error(err))
					continue
				}
				handler(event)
			case <-ctx.Done():
				logger.Log.Info(fmt.Sprintf("%s , sub close", userChannel(userID)))
				sub.Close()
				return
			}
		}
	}()
}

// NopNotifier swallow everything, test double
type NopNotifier struct{}

// NotifyUser no-op
func (NopNotifier) NotifyUser(string, domain.Event) {}

// NotifyConversation no-op
func (NopNotifier) NotifyConversation(string, []string, domain.Event) {}
