package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config собирает все настройки сервиса из переменных окружения
type Config struct {
	Port    string
	GinMode string

	Log struct {
		Format string
		Level  string
	}

	DB struct {
		Host            string
		Port            string
		User            string
		Password        string
		Name            string
		MaxOpenConns    int
		MaxIdleConns    int
		ConnMaxLifetime time.Duration
	}

	Redis struct {
		Host     string
		Port     string
		Password string
	}

	JWT struct {
		Secret string
		TTL    time.Duration
	}

	Admin struct {
		Username string
		Password string
	}

	Trip TripConfig

	Maps struct {
		DGISKey        string
		DGISDailyLimit int
		CacheEnabled   bool
		CacheTTL       time.Duration
		GoogleKey      string
	}

	Kafka struct {
		Brokers       []string
		TripTopic     string
		LocationTopic string
	}

	UploadDir string
}

// TripConfig - параметры тарифа и подбора поездок
type TripConfig struct {
	MatchRadiusKm float64
	BaseFare      float64
	PerKmRate     float64
	AvgSpeedKmh   float64
	DeclineTTL    time.Duration
}

// DefaultTripConfig возвращает значения по умолчанию, с которыми работало приложение изначально
func DefaultTripConfig() TripConfig {
	return TripConfig{
		MatchRadiusKm: 10,
		BaseFare:      5.0,
		PerKmRate:     1.5,
		AvgSpeedKmh:   30,
		DeclineTTL:    30 * time.Second,
	}
}

// Load читает .env (если есть) и переменные окружения
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используем переменные окружения")
	}

	var cfg Config
	cfg.Port = envOrDefault("PORT", "8080")
	cfg.GinMode = os.Getenv("GIN_MODE")
	cfg.Log.Format = envOrDefault("LOG_FORMAT", "text")
	cfg.Log.Level = envOrDefault("LOG_LEVEL", "info")

	cfg.DB.Host = envOrDefault("DB_HOST", "localhost")
	cfg.DB.Port = envOrDefault("DB_PORT", "5432")
	cfg.DB.User = envOrDefault("DB_USER", "postgres")
	cfg.DB.Password = os.Getenv("DB_PASSWORD")
	cfg.DB.Name = envOrDefault("DB_NAME", "family_taxi")
	cfg.DB.MaxOpenConns = envOrDefaultInt("DB_MAX_OPEN_CONNS", 100)
	cfg.DB.MaxIdleConns = envOrDefaultInt("DB_MAX_IDLE_CONNS", 25)
	cfg.DB.ConnMaxLifetime = time.Duration(envOrDefaultInt("DB_CONN_MAX_LIFETIME_MINUTES", 60)) * time.Minute

	cfg.Redis.Host = envOrDefault("REDIS_HOST", "localhost")
	cfg.Redis.Port = envOrDefault("REDIS_PORT", "6379")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")

	cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	cfg.JWT.TTL = time.Duration(envOrDefaultInt("JWT_TTL_HOURS", 24)) * time.Hour

	cfg.Admin.Username = envOrDefault("ADMIN_USERNAME", "admin")
	cfg.Admin.Password = envOrDefault("ADMIN_PASSWORD", "admin123")

	def := DefaultTripConfig()
	cfg.Trip.MatchRadiusKm = envOrDefaultFloat("MATCH_RADIUS_KM", def.MatchRadiusKm)
	cfg.Trip.BaseFare = envOrDefaultFloat("BASE_FARE", def.BaseFare)
	cfg.Trip.PerKmRate = envOrDefaultFloat("PER_KM_RATE", def.PerKmRate)
	cfg.Trip.AvgSpeedKmh = envOrDefaultFloat("AVG_SPEED_KMH", def.AvgSpeedKmh)
	cfg.Trip.DeclineTTL = time.Duration(envOrDefaultInt("DECLINE_TTL_SECONDS", int(def.DeclineTTL/time.Second))) * time.Second

	cfg.Maps.DGISKey = os.Getenv("DGIS_API_KEY")
	cfg.Maps.DGISDailyLimit = envOrDefaultInt("DGIS_DAILY_LIMIT", 5000)
	cfg.Maps.CacheEnabled = os.Getenv("CACHE_ENABLED") == "true"
	cfg.Maps.CacheTTL = time.Duration(envOrDefaultInt("DGIS_CACHE_DURATION", 86400)) * time.Second
	cfg.Maps.GoogleKey = os.Getenv("GOOGLE_MAPS_API_KEY")

	cfg.Kafka.Brokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.Kafka.TripTopic = envOrDefault("KAFKA_TRIP_TOPIC", "trip-events")
	cfg.Kafka.LocationTopic = envOrDefault("KAFKA_LOCATION_TOPIC", "driver-locations")

	cfg.UploadDir = envOrDefault("UPLOAD_DIR", "uploads")

	if cfg.JWT.Secret == "" {
		return cfg, fmt.Errorf("не задана переменная окружения JWT_SECRET")
	}
	if cfg.Trip.MatchRadiusKm <= 0 {
		return cfg, fmt.Errorf("MATCH_RADIUS_KM должен быть положительным, получено %v", cfg.Trip.MatchRadiusKm)
	}
	return cfg, nil
}

// DSN строка подключения к PostgreSQL
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name)
}

// RedisAddr адрес Redis в формате host:port
func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// splitList разбирает список через запятую, пропуская пустые элементы
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}
