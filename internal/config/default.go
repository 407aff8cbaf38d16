package config

import "time"

func SetDefaultConfig() *Config {
	return &Config{
		Env: "development",
		Telegram: TelegramConfig{
			UpdateTimeout: 60,
		},
		Raffle: RaffleConfig{
			EndsAt:    "2025-06-05T22:00:00+03:30",
			Timezone:  "Asia/Tehran",
			WinnerCap: 50,
		},
		Storage: StorageConfig{
			Driver:     StorageDriverFile,
			Path:       "data/raffle_data.json",
			Checkpoint: "@every 1m",
		},
		Database: DatabaseConfig{
			Host:              "localhost",
			Port:              5432,
			User:              "postgres",
			Password:          "",
			Name:              "raffle-bot",
			SSLMode:           "require",
			MaxOpenConns:      4,
			MaxIdleConns:      1,
			ConnMaxLifetime:   1 * time.Hour,
			ConnMaxIdleTime:   15 * time.Minute,
			HealthCheckPeriod: 1 * time.Minute,
		},
		Logger: LoggerConfig{
			Level:        "info",
			Format:       "json",
			Output:       "stdout",
			EnableColors: false,
			FilePath:     "",
			MaxSize:      0,
			MaxBackups:   0,
			MaxAge:       0,
			Compress:     false,
		},
	}
}
