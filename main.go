package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"family-taxi/internal/config"
	"family-taxi/internal/db"
	"family-taxi/internal/events"
	"family-taxi/internal/logger"
	"family-taxi/internal/middleware"
	"family-taxi/internal/repository"
	"family-taxi/internal/routes"
	"family-taxi/internal/services"
	"family-taxi/internal/services/dgis"
	"family-taxi/internal/services/gmaps"
	"family-taxi/internal/utils"
	"family-taxi/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"googlemaps.github.io/maps"
)

func main() {
	cfg, err := config.Load()
	log := logger.New(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		log.Error("ошибка конфигурации", "error", err)
		os.Exit(1)
	}

	// Устанавливаем режим релиза для продакшена
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	database, err := db.ConnectWithRetry(cfg, log, 5, 5*time.Second)
	if err != nil {
		log.Error("ошибка подключения к базе данных", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(database); err != nil {
		log.Error("ошибка миграции", "error", err)
		os.Exit(1)
	}

	// Redis не обязателен
	redisClient, err := db.NewRedisClient(cfg)
	if err != nil {
		log.Warn("Redis недоступен, продолжаем без кэширования, окна отказов и отзыва токенов", "error", err)
		redisClient = nil
	} else {
		log.Info("успешное подключение к Redis", "addr", cfg.RedisAddr())
		defer redisClient.Close()
	}

	userRepo := repository.NewUserRepository(database)
	tripRepo := repository.NewTripRepository(database)
	locationRepo := repository.NewLocationRepository(database)

	jwtManager := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.TTL)
	wsManager := websocket.NewManager(log)

	var (
		revoker  services.TokenRevoker
		declines services.DeclineStore
	)
	if redisClient != nil {
		revoker = services.NewRedisTokenRevoker(redisClient)
		declines = services.NewRedisDeclineStore(redisClient, cfg.Trip.DeclineTTL)
	}

	geocoders, router := mapProviders(cfg, redisClient, log)

	notifier := services.MultiNotifier{wsManager}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := events.NewKafkaPublisher(events.Config{
			Brokers:       cfg.Kafka.Brokers,
			TripTopic:     cfg.Kafka.TripTopic,
			LocationTopic: cfg.Kafka.LocationTopic,
		}, log)
		defer publisher.Close()
		notifier = append(notifier, publisher)
		log.Info("публикация событий в Kafka включена", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.TripTopic)
	}

	tripOpts := []services.TripOption{
		services.WithNotifier(notifier),
		services.WithDeclineStore(declines),
	}
	if len(router) > 0 {
		tripOpts = append(tripOpts, services.WithRouteEstimator(router))
	}

	userService := services.NewUserService(userRepo, tripRepo, jwtManager, revoker, notifier, log)
	tripService := services.NewTripService(tripRepo, userRepo, cfg.Trip, log, tripOpts...)
	locationService := services.NewLocationService(locationRepo, log, geocoders...)

	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 10*time.Second)
	if err := userService.EnsureAdmin(seedCtx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		log.Error("не удалось создать администратора", "error", err)
	}
	cancelSeed()

	r := gin.New()
	r.Use(middleware.RequestLogger(log))
	r.Use(gin.Recovery())
	r.Use(middleware.PrometheusMiddleware())

	// Настройка доверенных прокси
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		log.Warn("ошибка настройки доверенных прокси", "error", err)
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Статическая директория для загруженных файлов
	r.Static("/uploads", cfg.UploadDir)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	routes.SetupRoutes(r.Group("/api"), routes.Deps{
		Users:     userService,
		Trips:     tripService,
		Locations: locationService,
		JWT:       jwtManager,
		Revoker:   revoker,
		WS:        wsManager,
		UploadDir: cfg.UploadDir,
	})

	// WriteTimeout не задаём: он обрывал бы долгоживущие WebSocket соединения
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("сервер запущен", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ошибка запуска сервера", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал для graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("получен сигнал завершения, закрываем соединения")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	wsManager.Shutdown(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("ошибка при graceful shutdown", "error", err)
	}
	if sqlDB, err := database.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info("сервер корректно завершил работу")
}

// mapProviders собирает геокодеры и провайдеры маршрутов: сначала 2ГИС, затем Google Maps.
// Провайдер без ключа API не подключается.
func mapProviders(cfg config.Config, redisClient *redis.Client, log *slog.Logger) ([]services.Geocoder, services.RouteChain) {
	var (
		geocoders []services.Geocoder
		router    services.RouteChain
	)

	if cfg.Maps.DGISKey != "" {
		cache := dgis.NewCacheService(redisClient, cfg.Maps.CacheEnabled, cfg.Maps.CacheTTL)
		client := dgis.NewClient(cfg.Maps.DGISKey, cfg.Maps.DGISDailyLimit, cache, log)
		geocoders = append(geocoders, client)
		router = append(router, client)
		log.Info("2ГИС подключен", "daily_limit", cfg.Maps.DGISDailyLimit, "cache", cfg.Maps.CacheEnabled && redisClient != nil)
	}

	if cfg.Maps.GoogleKey != "" {
		client, err := gmaps.NewClient(cfg.Maps.GoogleKey, maps.WithRateLimit(10))
		if err != nil {
			log.Warn("не удалось создать клиент Google Maps", "error", err)
		} else {
			geocoders = append(geocoders, client)
			router = append(router, client)
			log.Info("Google Maps подключен")
		}
	}
	return geocoders, router
}
