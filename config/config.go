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

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Store    StoreConfig
	Feed     FeedConfig
	Weather  WeatherConfig
	Notify   NotifyConfig
	Schedule ScheduleConfig
	Pipeline PipelineConfig
}

type ServerConfig struct {
	Port        int
	MetricsAddr string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// URL renders the config in the redis:// form accepted by redis.ParseURL.
func (r RedisConfig) URL() string {
	auth := ""
	if r.Password != "" {
		auth = ":" + r.Password + "@"
	}
	return fmt.Sprintf("redis://%s%s/%d", auth, r.Addr(), r.DB)
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type CORSConfig struct {
	AllowedOrigins string
}

// StoreConfig selects the accident store and its collections.
type StoreConfig struct {
	Backend       string // postgres or mongo
	MongoURI      string
	MongoDatabase string
	// MongoTransactions needs a replica set.
	MongoTransactions bool
	LookupCollection  string
	InsertCollection  string
	LookupLimit       int
	ReadLimit         int
}

type FeedConfig struct {
	Kind     string // rest or soap
	Endpoint string
	Timeout  time.Duration
}

type WeatherConfig struct {
	Endpoint string
	APIKey   string
	Units    string
	Timeout  time.Duration
}

// NotifyConfig lists where new accidents are announced. Empty values disable
// that transport.
type NotifyConfig struct {
	Channel         string
	MQTTBroker      string
	MQTTTopicPrefix string
	NATSURL         string
}

type ScheduleConfig struct {
	IngestInterval time.Duration
	TrainInterval  time.Duration
	TrainRunOnce   bool
}

// LoadConfig reads a .env file when one exists, then the pipeline settings
// file named by PIPELINE_SETTINGS, then environment variables.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env: %v", err)
	}

	serverPort, err := getIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	redisPort, err := getIntEnv("REDIS_PORT", 6379)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}

	pipeline := DefaultPipeline()
	if path := getEnv("PIPELINE_SETTINGS", ""); path != "" {
		p, err := LoadPipelineSettings(path)
		if err != nil {
			return nil, err
		}
		pipeline = p
	}
	pipeline.applyEnv()

	lookup := getEnv("STORE_LOOKUP_COLLECTION", "accidents")

	cfg := &Config{
		Server: ServerConfig{
			Port:        serverPort,
			MetricsAddr: getEnv("METRICS_ADDR", ":8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "cityflow"),
			Password: getEnv("DB_PASSWORD", "cityflow_dev_password"),
			Name:     getEnv("DB_NAME", "cityflow"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     redisPort,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpiryHours: getEnvAsInt("JWT_EXPIRY_HOURS", 24),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Store: StoreConfig{
			Backend:           strings.ToLower(getEnv("STORE_BACKEND", "postgres")),
			MongoURI:          getEnv("MONGO_URI", "mongodb://localhost:27017"),
			MongoDatabase:     getEnv("MONGO_DB_NAME", "cmpd"),
			MongoTransactions: getEnvAsBool("MONGO_TRANSACTIONS", false),
			LookupCollection:  lookup,
			InsertCollection:  getEnv("STORE_INSERT_COLLECTION", lookup),
			LookupLimit:       getEnvAsInt("STORE_LOOKUP_LIMIT", 500),
			ReadLimit:         getEnvAsInt("TRAINER_READ_LIMIT", 3000),
		},
		Feed: FeedConfig{
			Kind:     strings.ToLower(getEnv("FEED_KIND", "soap")),
			Endpoint: getEnv("FEED_ENDPOINT", ""),
			Timeout:  getEnvAsDuration("FEED_TIMEOUT", 30*time.Second),
		},
		Weather: WeatherConfig{
			Endpoint: getEnv("WEATHER_ENDPOINT", ""),
			APIKey:   getEnv("WEATHER_API_KEY", ""),
			Units:    getEnv("WEATHER_UNITS", ""),
			Timeout:  getEnvAsDuration("WEATHER_TIMEOUT", 10*time.Second),
		},
		Notify: NotifyConfig{
			Channel:         getEnv("NOTIFY_CHANNEL", "cityflow:accidents"),
			MQTTBroker:      getEnv("MQTT_URL", ""),
			MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "cityflow/"),
			NATSURL:         getEnv("NATS_URL", ""),
		},
		Schedule: ScheduleConfig{
			IngestInterval: time.Duration(getEnvAsInt("INGEST_INTERVAL_SEC", 300)) * time.Second,
			TrainInterval:  time.Duration(getEnvAsInt("TRAINER_INTERVAL_SEC", 3600)) * time.Second,
			TrainRunOnce:   getEnvAsBool("TRAINER_RUN_ONCE", false),
		},
		Pipeline: pipeline,
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
