package database

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"chat_core_service/pkg/logger"
)

// NewKafkaWriterWithRetry 嘗試建立 Kafka Writer 並發送測試訊息以確認連線
func NewKafkaWriterWithRetry(k KafkaConnection) (*kafka.Writer, error) {
	var writer *kafka.Writer
	var err error

	for attempt := 1; attempt <= k.RetryCount; attempt++ {
		writer = kafka.NewWriter(kafka.WriterConfig{
			Brokers:  k.Brokers,
			Topic:    k.Topic,
			Balancer: &kafka.LeastBytes{},
		})

		// 發送一個測試訊息確認連線是否成功
		err = writer.WriteMessages(context.Background(), kafka.Message{
			Key:   []byte("ping"),
			Value: []byte("ping"),
		})
		if err == nil {
			logger.Log.Info(fmt.Sprintf("Kafka Writer 建立成功 (嘗試 %d 次)", attempt))
			return writer, nil
		}

		logger.Log.Warn(fmt.Sprintf("Kafka Writer 建立失敗 (嘗試 %d/%d): %v", attempt, k.RetryCount, err))
		writer.Close()
		time.Sleep(k.RetryInterval * time.Second)
	}

	return nil, fmt.Errorf("無法建立 Kafka Writer，經過 %d 次嘗試: %v", k.RetryCount, err)
}
