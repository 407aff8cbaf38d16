package config

import (
	"errors"
	"fmt"
	"strings"
)

type Validator interface {
	Validate(cfg *Config) error
}

type validator struct{}

func NewValidator() Validator {
	return validator{}
}

func (validator) Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	var errs []error

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if cfg.Telegram.UpdateTimeout < 0 {
		errs = append(errs, fmt.Errorf("telegram.update_timeout must not be negative, got %d", cfg.Telegram.UpdateTimeout))
	}

	if _, err := cfg.Raffle.EndsAtTime(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cfg.Raffle.Location(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Raffle.WinnerCap <= 0 {
		errs = append(errs, fmt.Errorf("raffle.winner_cap must be positive, got %d", cfg.Raffle.WinnerCap))
	}

	switch cfg.Storage.Driver {
	case StorageDriverFile, StorageDriverSQLite:
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for driver %q", cfg.Storage.Driver))
		}
	case StorageDriverPostgres:
		if cfg.Database.Host == "" || cfg.Database.Name == "" {
			errs = append(errs, errors.New("database.host and database.name are required for driver \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", cfg.Storage.Driver))
	}

	switch cfg.Logger.Output {
	case "stdout", "stderr":
	case "file":
		if cfg.Logger.FilePath == "" {
			errs = append(errs, errors.New("logger.file_path is required when output is 'file'"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown logger.output %q", cfg.Logger.Output))
	}

	return errors.Join(errs...)
}
