package main

import (
	"context"
	"log"
	"net/http"
	_ "net/http/pprof" // Для профилирования памяти
	"os"
	"runtime" // Для мониторинга памяти
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"alumfab/server/internal/api"
	"alumfab/server/internal/config"
	"alumfab/server/internal/database"
	"alumfab/server/internal/models"
	"alumfab/server/internal/services"
	"alumfab/server/internal/utils"
)

func main() {
	// Загружаем переменные окружения из .env файла (если существует)
	// Игнорируем ошибку, если файл не найден (для production окружений)
	if err := godotenv.Load(); err != nil {
		log.Printf("ℹ️ .env файл не найден, используем переменные окружения системы")
	} else {
		log.Printf("✅ Переменные окружения загружены из .env файла")
	}

	// Загрузка конфигурации
	cfg := config.Load()

	// Логируем наличие DATABASE_URL (без пароля)
	if cfg.DatabaseURL != "" {
		safeURL := cfg.DatabaseURL
		if idx := strings.Index(safeURL, "@"); idx > 0 {
			if schemeIdx := strings.Index(safeURL, "://"); schemeIdx > 0 {
				safeURL = safeURL[:schemeIdx+3] + "***@" + safeURL[idx+1:]
			}
		}
		log.Printf("📋 DATABASE_URL установлен: %s", safeURL)
	} else {
		log.Printf("⚠️ DATABASE_URL не установлен, используется значение по умолчанию")
	}

	if cfg.KafkaBrokers != "" {
		log.Printf("📡 KAFKA_BROKERS установлен: %s", cfg.KafkaBrokers)
	} else {
		log.Printf("⚠️ KAFKA_BROKERS не установлен, публикация событий отключена")
	}

	// Подключение к PostgreSQL. Без БД сервер не имеет смысла:
	// склад и планы раскроя живут только в PostgreSQL
	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ PostgreSQL connection failed: %v", err)
	}
	defer database.ClosePostgres(db)

	// Выполняем миграции
	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Database migrations completed")

	// Подключение к Redis (с поддержкой Sentinel). Redis опционален:
	// без него работаем без кэша сводки остатков
	redisClient, err := database.ConnectRedis(
		cfg.RedisURL,
		cfg.RedisSentinelAddrs,
		cfg.RedisMasterName,
	)
	var redisUtil *utils.RedisClient
	if err != nil {
		log.Printf("⚠️ Redis connection failed: %v (continuing without Redis)", err)
		redisClient = nil
		redisUtil = nil
	} else {
		redisUtil = utils.NewRedisClient(redisClient)
	}
	defer database.CloseRedis(redisClient)

	// Инициализация сервисов
	materialService := services.NewMaterialService(db)
	log.Println("✅ Material service initialized")

	orderService := services.NewOrderService(db)
	log.Println("✅ Order service initialized")

	planService := services.NewCuttingPlanService(db, materialService, cfg.LockTimeoutMS)
	log.Printf("✅ Cutting plan service initialized (lock_timeout=%dms)", cfg.LockTimeoutMS)

	// Kafka producer событий заказов (nil при пустых брокерах — публикация отключена)
	producer := api.NewOrderEventProducer(cfg.KafkaBrokers, cfg.KafkaUsername, cfg.KafkaPassword, cfg.KafkaCACert)
	if producer != nil {
		defer producer.Close()
	} else {
		log.Println("⚠️ Kafka producer НЕ запущен: KAFKA_BROKERS не установлен")
	}

	// Отключаем gin-логи, запросы логируем своим middleware
	gin.SetMode(gin.ReleaseMode)

	// Создаем пустой движок без лишних прослоек
	r := gin.New()

	// Health check endpoint (должен быть до CORS и tenant middleware)
	r.GET("/api/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "Fabrication ERP Server",
			"version": "1.0.0",
		})
	})

	// Логирование всех запросов
	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		log.Printf("🌐 %s %s - Status: %d - Latency: %v", method, path, status, latency)
	})

	// CORS для фронтенда
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Tenant-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Контроллеры
	materialController := api.NewMaterialController(materialService)
	stockController := api.NewStockController(materialService, redisUtil, time.Duration(cfg.StockCacheTTLSec)*time.Second)
	orderController := api.NewOrderController(orderService, producer)
	planController := api.NewCuttingPlanController(planService, stockController, producer)

	// Запускаем WebSocket Hub для экранов цеха
	go api.WorkshopHub.Run()
	log.Println("📺 WebSocket Hub запущен для экранов цеха")

	// Kafka consumer транслирует события заказов на экраны цеха.
	// При нескольких экземплярах сервера событие доходит до всех экранов
	consumer := api.NewOrderEventConsumer(cfg.KafkaBrokers, "", cfg.KafkaUsername, cfg.KafkaPassword, cfg.KafkaCACert)
	if consumer != nil {
		defer consumer.Close()
		go consumer.Run(context.Background())
	}

	// API routes: все данные изолированы по арендаторам
	apiGroup := r.Group("/api/v1")
	apiGroup.Use(api.TenantMiddleware())

	// Каталог материалов и партии
	materialGroup := apiGroup.Group("/materials")
	{
		materialGroup.GET("", materialController.GetMaterials)                         // Список материалов
		materialGroup.POST("", materialController.CreateMaterial)                      // Создать материал
		materialGroup.GET("/:id", materialController.GetMaterial)                      // Получить материал
		materialGroup.PATCH("/:id", materialController.UpdateMaterial)                 // Обновить материал
		materialGroup.DELETE("/:id", materialController.DeleteMaterial)                // Удалить материал
		materialGroup.POST("/:id/gauges", materialController.AddGauge)                 // Добавить калибр
		materialGroup.POST("/:id/batches/profile", materialController.ReceiveProfileBatch) // Оприходовать хлысты
		materialGroup.POST("/:id/batches/simple", materialController.ReceiveSimpleBatch)   // Оприходовать партию без раскроя
		materialGroup.GET("/:id/standard-lengths", materialController.GetStandardLengths)  // Доступные стандартные длины
	}
	log.Println("📦 Material endpoints enabled: /api/v1/materials")

	// Склад: сводка, журнал, ручные движения
	stockGroup := apiGroup.Group("/stock")
	{
		stockGroup.GET("/summary", stockController.GetStockSummary)      // Сводка остатков (кэшируется)
		stockGroup.GET("/transactions", stockController.GetTransactions) // Складской журнал
		stockGroup.POST("/adjustments", stockController.ManualAdjustment) // Ручное движение по партии
	}
	log.Println("📊 Stock endpoints enabled: /api/v1/stock")

	// Производственные заказы и планы раскроя
	orderGroup := apiGroup.Group("/orders")
	{
		orderGroup.GET("", orderController.GetOrders)                    // Список заказов
		orderGroup.POST("", orderController.CreateOrder)                 // Создать заказ
		orderGroup.GET("/:id", orderController.GetOrder)                 // Получить заказ
		orderGroup.PATCH("/:id/status", orderController.UpdateOrderStatus) // Перевести статус

		// План раскроя заказа
		orderGroup.POST("/:id/cutting-plan", planController.GeneratePlan)          // Сгенерировать план
		orderGroup.GET("/:id/cutting-plan", planController.GetPlan)                // Получить план
		orderGroup.DELETE("/:id/cutting-plan", planController.DiscardPlan)         // Удалить несписанный план
		orderGroup.POST("/:id/cutting-plan/commit", planController.CommitPlan)     // Списать склад по плану
	}
	log.Println("📋 Order endpoints enabled: /api/v1/orders")

	// WebSocket для экранов цеха (вне tenant middleware — upgrade без заголовков)
	r.GET("/api/v1/ws", api.ServeWS)

	// Запуск на порту из конфига
	port := cfg.ServerPort
	if port == "" {
		port = os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
	}

	// Запуск HTTP сервера для pprof (профилирование памяти)
	// Доступен на http://localhost:6060/debug/pprof/
	go func() {
		pprofPort := "6060"
		log.Printf("🔍 pprof доступен на http://localhost:%s/debug/pprof/", pprofPort)
		if err := http.ListenAndServe("localhost:"+pprofPort, nil); err != nil {
			log.Printf("⚠️ pprof server failed to start: %v", err)
		}
	}()

	// Периодическое логирование статистики памяти
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			logMemoryStats()
		}
	}()

	log.Printf("🚀 Server starting on port %s", port)
	log.Printf("📡 API доступен на http://0.0.0.0:%s/api/v1", port)
	if err := r.Run("0.0.0.0:" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// logMemoryStats логирует текущую статистику использования памяти
func logMemoryStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	heapAllocMB := float64(m.HeapAlloc) / 1024 / 1024
	heapSysMB := float64(m.HeapSys) / 1024 / 1024
	heapInuseMB := float64(m.HeapInuse) / 1024 / 1024
	sysMB := float64(m.Sys) / 1024 / 1024
	numGC := m.NumGC
	numGoroutines := runtime.NumGoroutine()

	log.Printf("💾 Memory Stats: HeapAlloc=%.2f MB, HeapSys=%.2f MB, HeapInuse=%.2f MB, Sys=%.2f MB, GC=%d, Goroutines=%d",
		heapAllocMB, heapSysMB, heapInuseMB, sysMB, numGC, numGoroutines)

	if numGoroutines > 100 {
		log.Printf("⚠️ WARNING: High number of goroutines detected: %d (possible goroutine leak)", numGoroutines)
	}

	if heapAllocMB > 500 {
		log.Printf("⚠️ WARNING: High memory usage detected: %.2f MB (possible memory leak)", heapAllocMB)
	}
}
