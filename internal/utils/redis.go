package utils

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient обертка над Redis клиентом для удобной работы
type RedisClient struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisClient создает новый Redis клиент
func NewRedisClient(client *redis.Client) *RedisClient {
	return &RedisClient{
		client: client,
		ctx:    context.Background(),
	}
}

// Set сохраняет значение с TTL
func (r *RedisClient) Set(key string, value interface{}, ttl time.Duration) error {
	var data string
	switch v := value.(type) {
	case string:
		data = v
	default:
		jsonData, err := json.Marshal(value)
		if err != nil {
			return err
		}
		data = string(jsonData)
	}

	return r.client.Set(r.ctx, key, data, ttl).Err()
}

// Get получает значение
func (r *RedisClient) Get(key string) (string, error) {
	return r.client.Get(r.ctx, key).Result()
}

// GetJSON получает и парсит JSON значение
func (r *RedisClient) GetJSON(key string, dest interface{}) error {
	data, err := r.client.Get(r.ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

// Delete удаляет ключ
func (r *RedisClient) Delete(key string) error {
	return r.client.Del(r.ctx, key).Err()
}

// Exists проверяет существование ключа
func (r *RedisClient) Exists(key string) (bool, error) {
	count, err := r.client.Exists(r.ctx, key).Result()
	return count > 0, err
}

// SetNX устанавливает значение только если ключ не существует
func (r *RedisClient) SetNX(key string, value interface{}, ttl time.Duration) (bool, error) {
	var data string
	switch v := value.(type) {
	case string:
		data = v
	default:
		jsonData, err := json.Marshal(value)
		if err != nil {
			return false, err
		}
		data = string(jsonData)
	}

	return r.client.SetNX(r.ctx, key, data, ttl).Result()
}

// Expire устанавливает TTL для существующего ключа
func (r *RedisClient) Expire(key string, ttl time.Duration) error {
	return r.client.Expire(r.ctx, key, ttl).Err()
}

// SetBytes сохраняет бинарные данные
func (r *RedisClient) SetBytes(key string, value []byte, ttl time.Duration) error {
	return r.client.Set(r.ctx, key, value, ttl).Err()
}

// GetBytes получает бинарные данные
func (r *RedisClient) GetBytes(key string) ([]byte, error) {
	return r.client.Get(r.ctx, key).Bytes()
}

// Publish публикует сообщение в канал (Pub/Sub)
func (r *RedisClient) Publish(channel string, message string) error {
	return r.client.Publish(r.ctx, channel, message).Err()
}

// Subscribe подписывается на канал и возвращает канал сообщений
func (r *RedisClient) Subscribe(channel string) (<-chan *redis.Message, func() error) {
	pubsub := r.client.Subscribe(r.ctx, channel)
	ch := pubsub.Channel()

	closeFn := func() error {
		return pubsub.Close()
	}

	return ch, closeFn
}
