package config

import (
	"os"
	"strconv"
)

// ApplyEnv overrides connection strings and secrets from the environment.
// Values loaded from a .env file by the CLI land here too.
func ApplyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("QUANHDAY_DEBUG"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
	setString(&cfg.Storage.Driver, "QUANHDAY_STORE_DRIVER")
	setString(&cfg.Storage.DatabasePath, "QUANHDAY_DATABASE_PATH")
	setString(&cfg.Storage.Postgres.URL, "QUANHDAY_POSTGRES_URL")
	setString(&cfg.Storage.Redis.Addr, "QUANHDAY_REDIS_ADDR")
	setString(&cfg.Storage.Redis.Password, "QUANHDAY_REDIS_PASSWORD")
	setString(&cfg.Storage.Firestore.ProjectID, "FIREBASE_PROJECT_ID")
	setString(&cfg.Storage.Firestore.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&cfg.Chat.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Chat.Model, "GEMINI_MODEL")
	if v, ok := os.LookupEnv("QUANHDAY_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}
