package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Env is a read-only view of process environment variables
type Env interface {
	LookupEnv(key string) (string, bool)
}

// OSEnv reads the real process environment
type OSEnv struct{}

// LookupEnv implements Env
func (OSEnv) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapEnv is a fixed environment, mostly useful in tests
type MapEnv map[string]string

// LookupEnv implements Env
func (m MapEnv) LookupEnv(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// envFileMapping maps .env variable names onto property keys
var envFileMapping = map[string]string{
	"QWEN_API_KEY":      PropAPIKey,
	"QWEN_API_BASE_URL": PropBaseURL,
	"QWEN_MODEL_NAME":   PropDefaultModel,
	"PROFILES_ACTIVE":   PropActiveProfile,
}

// PropertiesOptions controls where Properties are loaded from
type PropertiesOptions struct {
	ConfigFile string // explicit YAML file; empty searches ./configs and .
	EnvFile    string // .env path; empty means ".env" in the working directory
}

// Properties is the runtime property layer: YAML config file, then .env,
// then explicit overrides. Reads are safe for concurrent use.
type Properties struct {
	mu        sync.RWMutex
	opts      PropertiesOptions
	static    bool
	v         *viper.Viper
	overrides map[string]string
	files     []string
}

// NewProperties loads the property layer from disk
func NewProperties(opts PropertiesOptions) (*Properties, error) {
	p := &Properties{
		opts:      opts,
		overrides: make(map[string]string),
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewStaticProperties builds a property layer from a fixed map without
// touching the filesystem
func NewStaticProperties(values map[string]string) *Properties {
	p := &Properties{
		static:    true,
		overrides: make(map[string]string, len(values)),
	}
	for k, val := range values {
		p.overrides[k] = val
	}
	// static loads cannot fail
	_ = p.Reload()
	return p
}

// Reload re-reads the config file and the .env file. Overrides set with Set
// survive a reload.
func (p *Properties) Reload() error {
	v, err := p.load()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for k, val := range p.overrides {
		v.Set(k, val)
	}
	p.v = v
	p.files = p.sourceFiles(v)
	return nil
}

// Files lists the files the properties are read from: the config file in
// use, if any, and the .env path whether or not it exists yet
func (p *Properties) Files() []string {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.files...)
}

func (p *Properties) sourceFiles(v *viper.Viper) []string {
	if p.static {
		return nil
	}
	var files []string
	if used := v.ConfigFileUsed(); used != "" {
		files = append(files, absPath(used))
	}
	return append(files, absPath(p.envFile()))
}

func (p *Properties) envFile() string {
	if p.opts.EnvFile == "" {
		return ".env"
	}
	return p.opts.EnvFile
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (p *Properties) load() (*viper.Viper, error) {
	v := viper.New()
	if p.static {
		return v, nil
	}

	v.SetConfigType("yaml")
	if p.opts.ConfigFile != "" {
		v.SetConfigFile(p.opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	values, err := godotenv.Read(p.envFile())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	for name, value := range values {
		v.Set(name, value)
		if key, ok := envFileMapping[name]; ok && value != "" {
			if key == PropDefaultModel {
				value = SanitizeModel(value)
			}
			v.Set(key, value)
		}
	}
	return v, nil
}

// Set overrides a property. Overrides take priority over files.
func (p *Properties) Set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrides[key] = value
	p.v.Set(key, value)
}

// Get returns a trimmed, non-blank property value
func (p *Properties) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.v == nil || !p.v.IsSet(key) {
		return "", false
	}
	value := strings.TrimSpace(p.v.GetString(key))
	return value, value != ""
}
