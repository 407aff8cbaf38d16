package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "RAFFLE_BOT"

type Config struct {
	Env      string         `mapstructure:"env"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Raffle   RaffleConfig   `mapstructure:"raffle"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

type TelegramConfig struct {
	Token         string `mapstructure:"token"`
	Debug         bool   `mapstructure:"debug"`
	UpdateTimeout int    `mapstructure:"update_timeout"`
}

type RaffleConfig struct {
	// EndsAt is an RFC3339 timestamp with an explicit offset.
	EndsAt    string `mapstructure:"ends_at"`
	Timezone  string `mapstructure:"timezone"`
	WinnerCap int    `mapstructure:"winner_cap"`
}

type StorageDriver string

const (
	StorageDriverFile     StorageDriver = "file"
	StorageDriverSQLite   StorageDriver = "sqlite"
	StorageDriverPostgres StorageDriver = "postgres"
)

type StorageConfig struct {
	Driver     StorageDriver `mapstructure:"driver"`
	Path       string        `mapstructure:"path"`
	Checkpoint string        `mapstructure:"checkpoint"`
}

type DatabaseConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Name              string        `mapstructure:"name"`
	SSLMode           string        `mapstructure:"sslmode"`
	MaxOpenConns      int           `mapstructure:"max_open_conns"`
	MaxIdleConns      int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime   time.Duration `mapstructure:"conn_max_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

type LoggerConfig struct {
	Level        string `mapstructure:"level"`
	Format       string `mapstructure:"format"`
	Output       string `mapstructure:"output"`
	EnableColors bool   `mapstructure:"enable_colors"`
	FilePath     string `mapstructure:"file_path"`
	MaxSize      int    `mapstructure:"max_size"`
	MaxBackups   int    `mapstructure:"max_backups"`
	MaxAge       int    `mapstructure:"max_age"`
	Compress     bool   `mapstructure:"compress"`
}

type Loader interface {
	Load(ctx context.Context) (*Config, error)
}

type viperLoader struct {
	configPath string
	validator  Validator
}

func NewViperLoader(configPath string, validator Validator) Loader {
	if configPath == "" {
		configPath = "."
	}
	return &viperLoader{
		configPath: configPath,
		validator:  validator,
	}
}

func (l *viperLoader) Load(ctx context.Context) (*Config, error) {
	cfg := SetDefaultConfig()

	// .env only fills variables that are not already set
	if err := godotenv.Load(filepath.Join(l.configPath, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(l.configPath)
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l.BindEnvVariables(v)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("config failed validation: %w", err)
	}

	return cfg, nil
}

func (l *viperLoader) BindEnvVariables(v *viper.Viper) {
	_ = v.BindEnv("env")
	// Telegram
	_ = v.BindEnv("telegram.token")
	_ = v.BindEnv("telegram.debug")
	_ = v.BindEnv("telegram.update_timeout")
	// Raffle
	_ = v.BindEnv("raffle.ends_at")
	_ = v.BindEnv("raffle.timezone")
	_ = v.BindEnv("raffle.winner_cap")
	// Storage
	_ = v.BindEnv("storage.driver")
	_ = v.BindEnv("storage.path")
	_ = v.BindEnv("storage.checkpoint")
	// Database
	_ = v.BindEnv("database.host")
	_ = v.BindEnv("database.port")
	_ = v.BindEnv("database.user")
	_ = v.BindEnv("database.password")
	_ = v.BindEnv("database.name")
	_ = v.BindEnv("database.sslmode")
	_ = v.BindEnv("database.max_open_conns")
	_ = v.BindEnv("database.max_idle_conns")
	_ = v.BindEnv("database.conn_max_lifetime")
	_ = v.BindEnv("database.conn_max_idle_time")
	_ = v.BindEnv("database.health_check_period")
	// Logger
	_ = v.BindEnv("logger.level")
	_ = v.BindEnv("logger.format")
	_ = v.BindEnv("logger.output")
	_ = v.BindEnv("logger.enable_colors")
	_ = v.BindEnv("logger.file_path")
	_ = v.BindEnv("logger.max_size")
	_ = v.BindEnv("logger.max_backups")
	_ = v.BindEnv("logger.max_age")
	_ = v.BindEnv("logger.compress")
}

func Load(configPath string, ctx context.Context) (*Config, error) {
	loader := NewViperLoader(configPath, NewValidator())
	return loader.Load(ctx)
}

// EndsAtTime parses the raffle deadline.
func (c *RaffleConfig) EndsAtTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(c.EndsAt))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid raffle.ends_at %q: %w", c.EndsAt, err)
	}
	return t, nil
}

// Location resolves the display timezone, falling back to the offset
// carried by EndsAt.
func (c *RaffleConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		t, err := c.EndsAtTime()
		if err != nil {
			return nil, err
		}
		return t.Location(), nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid raffle.timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *DatabaseConfig) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}
