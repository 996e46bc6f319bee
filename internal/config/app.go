package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig represents application configuration
type AppConfig struct {
	Server struct {
		Host         string   `mapstructure:"host"`
		Port         int      `mapstructure:"port"`
		Mode         string   `mapstructure:"mode"`
		JWTSecret    string   `mapstructure:"jwt_secret"`
		AllowOrigins []string `mapstructure:"allow_origins"`
	} `mapstructure:"server"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
		Output string `mapstructure:"output"`
	} `mapstructure:"logging"`

	Provider struct {
		APIKey       string        `mapstructure:"api_key"` // used only when no env/property key exists
		Timeout      time.Duration `mapstructure:"timeout"`
		SystemPrompt string        `mapstructure:"system_prompt"`
		Temperature  float64       `mapstructure:"temperature"`
		MaxTokens    int           `mapstructure:"max_tokens"`
	} `mapstructure:"provider"`

	Watch struct {
		Enabled  bool          `mapstructure:"enabled"` // reload credentials when config/.env change
		Debounce time.Duration `mapstructure:"debounce"`
	} `mapstructure:"watch"`

	Probe struct {
		Schedule string `mapstructure:"schedule"` // cron spec, empty disables background probing
	} `mapstructure:"probe"`

	Stream struct {
		Workers    int           `mapstructure:"workers"`
		QueueSize  int           `mapstructure:"queue_size"`
		Buffer     int           `mapstructure:"buffer"`
		ChunkDelay time.Duration `mapstructure:"chunk_delay"`
	} `mapstructure:"stream"`

	Metrics struct {
		Enabled   bool   `mapstructure:"enabled"`
		Path      string `mapstructure:"path"`
		Namespace string `mapstructure:"namespace"`
	} `mapstructure:"metrics"`
}

// Load reads the application config. An empty path searches ./configs and
// the working directory for config.yaml; a missing file is not an error.
func Load(path string) (*AppConfig, error) {
	return LoadWithEnvFile(path, ".env")
}

// LoadWithEnvFile is Load with an explicit .env path. A SERVER_PORT in the
// .env file sets the listen port unless the process environment has one.
func LoadWithEnvFile(path, envFile string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("provider.timeout", "60s")
	v.SetDefault("provider.system_prompt", "You are a helpful assistant for spreadsheet and data analysis questions.")
	v.SetDefault("provider.temperature", 0.7)
	v.SetDefault("provider.max_tokens", 2000)
	v.SetDefault("stream.workers", 8)
	v.SetDefault("stream.queue_size", 100)
	v.SetDefault("stream.buffer", 64)
	v.SetDefault("stream.chunk_delay", "50ms")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "aigateway")
	v.SetDefault("watch.enabled", true)
	v.SetDefault("watch.debounce", "200ms")
	v.SetDefault("probe.schedule", "")

	// Bind environment variables for docker-compose compatibility
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "GIN_MODE")
	v.BindEnv("server.jwt_secret", "JWT_SECRET")
	v.BindEnv("logging.level", "LOG_LEVEL")
	v.BindEnv("logging.format", "LOG_FORMAT")
	v.BindEnv("probe.schedule", "PROBE_SCHEDULE")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if port := dotenv["SERVER_PORT"]; port != "" && os.Getenv("SERVER_PORT") == "" {
		v.Set("server.port", port)
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
