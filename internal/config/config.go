package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strings"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env          string   // application environment (e.g. "dev", "prod")
	Port         string   // HTTP port to listen on
	StoreDriver  string   // "mysql" or "memory"
	DBUser       string   // database username
	DBPass       string   // database password (optional)
	DBHost       string   // database host address
	DBPort       string   // database port number
	DBName       string   // database name
	JWTSecret    string   // secret used to verify bearer tokens
	ConfirmRoles []string // roles allowed to confirm or cancel a booking
	AdminRoles   []string // roles allowed to create events
	RabbitMQURL  string   // AMQP URL for booking events; empty disables publishing
	LogLevel     string   // zap level name
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Database settings
// are only required when the mysql store driver is selected.
func Load() Config {
	cfg := Config{
		Env:          envStr("APP_ENV", "dev"),
		Port:         envStr("APP_PORT", "8080"),
		StoreDriver:  strings.ToLower(envStr("STORE_DRIVER", "mysql")),
		JWTSecret:    must("JWT_SECRET"),
		ConfirmRoles: envList("CONFIRM_ROLES", []string{"ADMIN", "PAYMENT"}),
		AdminRoles:   envList("ADMIN_ROLES", []string{"ADMIN"}),
		RabbitMQURL:  os.Getenv("RABBITMQ_URL"),
		LogLevel:     envStr("LOG_LEVEL", "info"),
	}
	if cfg.StoreDriver == "mysql" {
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	}
	return cfg
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
