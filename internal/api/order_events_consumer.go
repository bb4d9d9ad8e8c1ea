package api

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/segmentio/kafka-go"
)

// OrderEventConsumer читает события заказов из Kafka и транслирует их
// на экраны цеха. Нужен при нескольких экземплярах сервера: списание,
// выполненное одним экземпляром, доходит до экранов, подключенных к другим
type OrderEventConsumer struct {
	reader *kafka.Reader
	hub    *Hub
}

// NewOrderEventConsumer создает consumer событий заказов.
// При пустом списке брокеров возвращает nil — трансляция идет только локально
func NewOrderEventConsumer(brokers string, groupID string, username, password, caCert string) *OrderEventConsumer {
	brokerList := ParseKafkaBrokers(brokers)
	if len(brokerList) == 0 {
		return nil
	}
	if groupID == "" {
		// Группа уникальна для экземпляра: каждый экземпляр получает все
		// события и передает их своим экранам
		hostname, _ := os.Hostname()
		groupID = fmt.Sprintf("alumfab-workshop-%s-%d", hostname, os.Getpid())
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokerList,
		Topic:   "fabrication-order-events",
		GroupID: groupID,
		Dialer:  CreateKafkaDialer(username, password, caCert),
	})
	log.Printf("✅ Kafka consumer подключен к %s (группа %s)", brokers, groupID)
	return &OrderEventConsumer{reader: reader, hub: WorkshopHub}
}

// Run читает события до отмены контекста и рассылает их экранам цеха
func (c *OrderEventConsumer) Run(ctx context.Context) {
	if c == nil {
		return
	}
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("⚠️ Kafka: ошибка чтения события: %v", err)
			continue
		}
		c.hub.BroadcastMessage(msg.Value)
	}
}

// Close закрывает Kafka reader
func (c *OrderEventConsumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}
