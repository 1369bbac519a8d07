package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 应用配置
type Config struct {
	Port          string
	DBPath        string
	DBBusyTimeout time.Duration

	APIKey        string // 为空时不校验 API Key
	AdminUsername string
	AdminPassword string
	JWTSecret     string
	TokenTTL      time.Duration

	StrictStatus bool // 拒绝未知状态值

	RedisAddress  string // 为空时不启用 Redis 推送
	RedisPassword string
	RedisDatabase int
	RedisChannel  string

	MapConfigPath      string
	PresetVehiclesPath string

	RateLimit  int
	RateWindow time.Duration

	ImportWorkers int
}

// Load 加载配置
func Load() *Config {
	port := getEnv("PORT", ":8080")
	if !strings.Contains(port, ":") {
		port = ":" + port
	}

	return &Config{
		Port:          port,
		DBPath:        getEnv("DB_PATH", "./data/vehicles.db"),
		DBBusyTimeout: getDuration("DB_BUSY_TIMEOUT", 5*time.Second),

		APIKey:        os.Getenv("API_KEY"),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
		JWTSecret:     getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		TokenTTL:      getDuration("TOKEN_TTL", 24*time.Hour),

		StrictStatus: getBool("STRICT_STATUS", false),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDatabase: getInt("REDIS_DATABASE", 0),
		RedisChannel:  getEnv("REDIS_CHANNEL", "vehicle-status"),

		MapConfigPath:      getEnv("MAP_CONFIG_PATH", "./data/mapConfig.yaml"),
		PresetVehiclesPath: getEnv("PRESET_VEHICLES_PATH", "./data/presetVehicles.json"),

		RateLimit:  getInt("RATE_LIMIT", 60),
		RateWindow: getDuration("RATE_WINDOW", time.Minute),

		ImportWorkers: getInt("IMPORT_WORKERS", 4),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}
