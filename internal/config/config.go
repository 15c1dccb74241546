package config

import (
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// 默认 PostgreSQL 端口，DB_HOST 未带端口时使用
const defaultDBPort = "5432"

type Config struct {
	// Server
	ServerPort string
	Debug      bool

	// Database
	DBHost     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

func Load() (*Config, error) {
	// 尝试加载 .env 文件（可选）
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort: getEnv("PORT", "8000"),
		Debug:      getEnvBool("DEBUG", false),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBName:     getEnv("POSTGRES_DB", "iot_db"),
		DBUser:     getEnv("POSTGRES_USER", "myuser"),
		DBPassword: getEnv("POSTGRES_PASSWORD", "mypassword"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	return cfg, nil
}

// DatabaseURL 拼接 pgx 连接串，用户名和密码会被转义
func (c *Config) DatabaseURL() string {
	host := c.DBHost
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, defaultDBPort)
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.DBUser, c.DBPassword),
		Host:   host,
		Path:   "/" + c.DBName,
	}
	if c.DBSSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.DBSSLMode}}.Encode()
	}
	return u.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}
