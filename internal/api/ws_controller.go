package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Разрешаем подключения с любого origin (для разработки)
		// В продакшене лучше проверять конкретные домены
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ServeWS обрабатывает WebSocket подключения цеховых экранов
func ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ Ошибка обновления WebSocket соединения: %v", err)
		return
	}

	WorkshopHub.AddClient(conn)
	log.Printf("📺 Экран цеха подключен. Всего подключений: %d", WorkshopHub.GetClientsCount())

	defer func() {
		WorkshopHub.RemoveClient(conn)
		log.Printf("📺 Экран цеха отключен. Осталось подключений: %d", WorkshopHub.GetClientsCount())
	}()

	// Читаем сообщения от клиента (ping/pong для поддержания соединения)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("⚠️ WebSocket ошибка: %v", err)
			}
			break
		}
	}
}
