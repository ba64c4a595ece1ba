package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// PathEnv names the variable holding the config file path.
	PathEnv   = "TRAITOR_CONFIG"
	envPrefix = "TRAITOR_"

	openAIKeyEnv         = "OPENAI_API_KEY"
	firebaseCredsJSONEnv = "FIREBASE_CREDENTIALS_JSON"

	defaultConfigFile = "config.json"
)

// Config represents runtime configuration for the service.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Session SessionConfig `koanf:"session"`
	Redis   RedisConfig   `koanf:"redis"`
	Storage StorageConfig `koanf:"storage"`
	LLM     LLMConfig     `koanf:"llm"`

	// dir is the directory of the loaded config file, used to resolve relative paths.
	dir string
}

type ServerConfig struct {
	Address     string   `koanf:"address"`
	Mode        string   `koanf:"mode"` // gin mode: debug, release, test
	CORSOrigins []string `koanf:"cors_origins"`
}

type SessionConfig struct {
	CookieName   string `koanf:"cookie_name"`
	Store        string `koanf:"store"` // memory or redis
	TTLMinutes   int    `koanf:"ttl_minutes"`
	SecureCookie bool   `koanf:"secure_cookie"`
}

type RedisConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type StorageConfig struct {
	Provider        string `koanf:"provider"` // gcs or local
	Bucket          string `koanf:"bucket"`
	CredentialsJSON string `koanf:"credentials_json"`
	CredentialsFile string `koanf:"credentials_file"`
	LocalDir        string `koanf:"local_dir"`
	MaxObjectBytes  int64  `koanf:"max_object_bytes"`
}

type LLMConfig struct {
	Provider       string `koanf:"provider"` // openai, gemini or claude
	BaseURL        string `koanf:"base_url"`
	APIKey         string `koanf:"api_key"`
	PrimaryModel   string `koanf:"primary_model"`
	SecondaryModel string `koanf:"secondary_model"`
	MaxTokens      int    `koanf:"max_tokens"`
}

// Load builds the configuration from defaults, an optional config file and the
// environment, in increasing order of precedence. An empty path falls back to
// $TRAITOR_CONFIG and then to config.json when that file exists.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	setDefaults(k)

	explicit := true
	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path == "" {
		path = defaultConfigFile
		explicit = false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	dir := filepath.Dir(absPath)
	if _, err := os.Stat(absPath); err == nil {
		if err := loadFile(k, absPath); err != nil {
			return nil, err
		}
	} else if explicit {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	} else {
		dir, _ = os.Getwd()
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: transformEnv,
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	applyLegacyEnv(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.dir = dir
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	defaults := map[string]interface{}{
		"server.address":      ":5000",
		"server.mode":         "debug",
		"server.cors_origins": []string{"*"},

		"session.cookie_name":   "session",
		"session.store":         "memory",
		"session.ttl_minutes":   24 * 60,
		"session.secure_cookie": false,

		"redis.host": "127.0.0.1",
		"redis.port": 6379,
		"redis.db":   0,

		"storage.provider":         "gcs",
		"storage.bucket":           "traitor-14f52.appspot.com",
		"storage.credentials_file": "firebasecred.json",
		"storage.max_object_bytes": int64(10 << 20),

		"llm.provider":        "openai",
		"llm.api_key":         "",
		"llm.primary_model":   "gpt-4-1106-preview",
		"llm.secondary_model": "gpt-3.5-turbo",
		"llm.max_tokens":      3000,
	}
	for key, value := range defaults {
		_ = k.Set(key, value)
	}
}

func loadFile(k *koanf.Koanf, path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json", "":
		parser = json.Parser()
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// transformEnv maps TRAITOR_SECTION__FIELD to section.field.
func transformEnv(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if key == "server.cors_origins" {
		parts := strings.Split(value, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		return key, origins
	}
	return key, value
}

// applyLegacyEnv honours the variable names the deployment already uses.
func applyLegacyEnv(k *koanf.Koanf) {
	if v := os.Getenv(openAIKeyEnv); v != "" {
		_ = k.Set("llm.api_key", v)
	}
	if v := os.Getenv(firebaseCredsJSONEnv); v != "" {
		_ = k.Set("storage.credentials_json", v)
	}
}

func validate(cfg *Config) error {
	switch cfg.Session.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
	if strings.TrimSpace(cfg.Session.CookieName) == "" {
		return errors.New("session.cookie_name must be configured")
	}
	switch cfg.Storage.Provider {
	case "gcs":
		if cfg.Storage.Bucket == "" {
			return errors.New("storage.bucket must be configured for gcs")
		}
	case "local":
		if cfg.Storage.LocalDir == "" {
			return errors.New("storage.local_dir must be configured for local storage")
		}
	default:
		return fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
	switch cfg.LLM.Provider {
	case "openai", "gemini", "claude":
	default:
		return fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	if cfg.LLM.PrimaryModel == "" || cfg.LLM.SecondaryModel == "" {
		return errors.New("llm.primary_model and llm.secondary_model must be configured")
	}
	if cfg.LLM.APIKey == "" {
		log.Printf("config: llm api key is empty, completion calls will fail")
	}
	return nil
}

// StorageCredentials returns the service-account JSON for the object store,
// preferring the inline value over the credentials file.
func (c *Config) StorageCredentials() ([]byte, error) {
	if c.Storage.CredentialsJSON != "" {
		return []byte(c.Storage.CredentialsJSON), nil
	}
	if c.Storage.CredentialsFile == "" {
		return nil, errors.New("no storage credentials configured")
	}
	data, err := os.ReadFile(c.resolve(c.Storage.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("read storage credentials: %w", err)
	}
	return data, nil
}

// LocalDir returns storage.local_dir resolved against the config directory.
func (c *Config) LocalDir() string {
	return c.resolve(c.Storage.LocalDir)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}
