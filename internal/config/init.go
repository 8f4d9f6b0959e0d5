package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/inboxkit/mailsync/internal/logger"
	"github.com/inboxkit/mailsync/internal/tracing"
)

type Config struct {
	AppConfig            *AppConfig
	Logger               *logger.Config
	Tracing              *tracing.JaegerConfig
	DatabaseConfig       *DatabaseConfig
	R2StorageConfig      *R2StorageConfig
	GoogleOAuthConfig    *GoogleOAuthConfig
	MicrosoftOAuthConfig *MicrosoftOAuthConfig
	SyncConfig           *SyncConfig
}

func InitConfig() (*Config, error) {
	config := &Config{
		AppConfig:            &AppConfig{},
		Logger:               &logger.Config{},
		Tracing:              &tracing.JaegerConfig{},
		DatabaseConfig:       &DatabaseConfig{},
		R2StorageConfig:      &R2StorageConfig{},
		GoogleOAuthConfig:    &GoogleOAuthConfig{},
		MicrosoftOAuthConfig: &MicrosoftOAuthConfig{},
		SyncConfig:           &SyncConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		log.Fatalf("Error loading mailsync config: %v", err)
	}

	return config, nil
}
