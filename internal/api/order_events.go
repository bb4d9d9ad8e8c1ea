package api

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"alumfab/server/internal/models"

	"github.com/segmentio/kafka-go"
)

// OrderEventProducer публикует события жизненного цикла заказов в Kafka.
// События потребляют внешние системы: бухгалтерия, SMS-уведомления клиентов
type OrderEventProducer struct {
	writer *kafka.Writer
}

// OrderEvent — событие смены статуса заказа
type OrderEvent struct {
	EventType   string    `json:"event_type"` // order_status_changed, cutting_committed
	TenantID    string    `json:"tenant_id"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	PlanID      string    `json:"plan_id,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NewOrderEventProducer создает producer для событий заказов.
// При пустом списке брокеров возвращает nil — публикация отключена
func NewOrderEventProducer(brokers string, username, password, caCert string) *OrderEventProducer {
	brokerList := ParseKafkaBrokers(brokers)
	if len(brokerList) == 0 {
		return nil
	}

	writer := &kafka.Writer{
		Addr:      kafka.TCP(brokerList...),
		Topic:     "fabrication-order-events",
		Balancer:  &kafka.LeastBytes{},
		Async:     true, // Асинхронная отправка — HTTP ответ не ждет Kafka
		Transport: CreateKafkaTransport(username, password, caCert),
	}
	log.Printf("✅ Kafka producer подключен к %s (топик fabrication-order-events)", brokers)
	return &OrderEventProducer{writer: writer}
}

// Close закрывает Kafka writer
func (p *OrderEventProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// PublishStatusChange публикует смену статуса заказа. Публикация идет
// в фоне и не влияет на результат операции — склад уже изменен
func (p *OrderEventProducer) PublishStatusChange(order *models.FabricationOrder, planID string) {
	if p == nil || p.writer == nil {
		return
	}

	event := OrderEvent{
		EventType:   "order_status_changed",
		TenantID:    order.TenantID,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		PlanID:      planID,
		OccurredAt:  time.Now(),
	}
	if order.Status == models.OrderStatusCuttingCommitted {
		event.EventType = "cutting_committed"
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("⚠️ Kafka: ошибка сериализации события заказа %s: %v", order.OrderNumber, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(order.ID),
			Value: payload,
		}); err != nil {
			log.Printf("⚠️ Kafka: не удалось опубликовать событие %s для заказа %s: %v", event.EventType, order.OrderNumber, err)
		}
	}()
}
