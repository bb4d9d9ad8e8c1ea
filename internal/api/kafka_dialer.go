package api

import (
	"crypto/tls"
	"crypto/x509"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// CreateKafkaDialer создает dialer для Kafka с поддержкой SASL/PLAIN и TLS
// (управляемые кластеры требуют TLS при включенном SASL)
func CreateKafkaDialer(username, password, caCert string) *kafka.Dialer {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	// Если указаны username и password, используем SASL/PLAIN
	if username != "" && password != "" {
		mechanism := plain.Mechanism{
			Username: username,
			Password: password,
		}
		dialer.SASLMechanism = mechanism
		log.Printf("🔐 Kafka: SASL/PLAIN аутентификация включена (username: %s)", username)
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: false,
	}

	// Если указан CA сертификат, добавляем его в pool
	if caCert != "" {
		caCertPool := x509.NewCertPool()
		if ok := caCertPool.AppendCertsFromPEM([]byte(caCert)); ok {
			tlsConfig.RootCAs = caCertPool
			log.Printf("🔒 Kafka: TLS с CA сертификатом включен")
		} else {
			log.Printf("⚠️ Kafka: не удалось распарсить CA сертификат, используем системные сертификаты")
		}
	}

	if dialer.SASLMechanism != nil || caCert != "" {
		dialer.TLS = tlsConfig
	}

	return dialer
}

// CreateKafkaTransport создает transport для kafka.Writer с теми же
// настройками SASL/TLS, что и dialer
func CreateKafkaTransport(username, password, caCert string) *kafka.Transport {
	transport := &kafka.Transport{
		DialTimeout: 10 * time.Second,
	}

	if username != "" && password != "" {
		transport.SASL = plain.Mechanism{
			Username: username,
			Password: password,
		}
	}

	if username != "" || caCert != "" {
		tlsConfig := &tls.Config{}
		if caCert != "" {
			caCertPool := x509.NewCertPool()
			if caCertPool.AppendCertsFromPEM([]byte(caCert)) {
				tlsConfig.RootCAs = caCertPool
			}
		}
		transport.TLS = tlsConfig
	}

	return transport
}

// ParseKafkaBrokers парсит строку с брокерами (может быть через запятую)
func ParseKafkaBrokers(brokers string) []string {
	if brokers == "" {
		return []string{}
	}
	brokerList := strings.Split(strings.ReplaceAll(brokers, " ", ""), ",")
	var result []string
	for _, broker := range brokerList {
		if broker != "" {
			result = append(result, broker)
		}
	}
	return result
}
