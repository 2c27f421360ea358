package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingLLMKey = errors.New("llm api key not set: set CAMPUS_LLM_APIKEY or GROQ_API_KEY in the environment or .env")

type Config struct {
	Server      ServerConfig
	SQLite      SQLiteConfig
	Redis       RedisConfig
	Cache       CacheConfig
	LLM         LLMConfig
	Translation TranslationConfig
	Voice       VoiceConfig
	Knowledge   KnowledgeConfig
	Logging     LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	Development  bool
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig selects the translation result cache: "none", "memory" or "redis".
type CacheConfig struct {
	Backend    string
	TTLSeconds int
}

type LLMConfig struct {
	Provider    string
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	TopP        float32
	MaxTokens   int
	TimeoutSec  int
	Institution string
}

type TranslationConfig struct {
	Endpoint         string
	Workers          int
	DetectTimeoutSec int
	TimeoutSec       int
}

type VoiceConfig struct {
	APIKey      string
	STTEndpoint string
	TTSEndpoint string
	Voice       string
	Format      string
	TimeoutSec  int
	FFmpegPath  string
}

type KnowledgeConfig struct {
	Path string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// Load reads .env (if present), config.yaml (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/campus-assist")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("CAMPUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindWellKnownEnv(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyProviderPreset(&config.LLM)

	return &config, nil
}

// Validate reports configuration that must be present before the server starts.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return ErrMissingLLMKey
	}
	switch c.Cache.Backend {
	case "", "none", "memory", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	return nil
}

func bindWellKnownEnv(v *viper.Viper) {
	_ = v.BindEnv("llm.apiKey", "CAMPUS_LLM_APIKEY", "GROQ_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("voice.apiKey", "CAMPUS_VOICE_APIKEY", "SARVAM_API_KEY")
	_ = v.BindEnv("voice.sttEndpoint", "CAMPUS_VOICE_STTENDPOINT", "SARVAM_STT_ENDPOINT")
	_ = v.BindEnv("voice.ttsEndpoint", "CAMPUS_VOICE_TTSENDPOINT", "SARVAM_TTS_ENDPOINT")
	_ = v.BindEnv("voice.voice", "CAMPUS_VOICE_VOICE", "SARVAM_TTS_VOICE")
	_ = v.BindEnv("voice.format", "CAMPUS_VOICE_FORMAT", "SARVAM_TTS_FORMAT")
	_ = v.BindEnv("voice.timeoutSec", "CAMPUS_VOICE_TIMEOUTSEC", "SARVAM_TIMEOUT")
	_ = v.BindEnv("sqlite.path", "CAMPUS_SQLITE_PATH", "DATABASE_PATH")
}

func applyProviderPreset(cfg *LLMConfig) {
	switch cfg.Provider {
	case "gemini":
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
		}
		if cfg.Model == "" {
			cfg.Model = "gemini-1.5-flash"
		}
	default:
		if cfg.BaseURL == "" {
			cfg.BaseURL = "https://api.groq.com/openai/v1"
		}
		if cfg.Model == "" {
			cfg.Model = "llama-3.1-8b-instant"
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 60)
	v.SetDefault("server.bodyLimit", 10485760)
	v.SetDefault("server.development", true)

	v.SetDefault("sqlite.path", "./data/database.db")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.backend", "none")
	v.SetDefault("cache.ttlSeconds", 3600)

	v.SetDefault("llm.provider", "groq")
	v.SetDefault("llm.baseURL", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.topP", 0.9)
	v.SetDefault("llm.maxTokens", 300)
	v.SetDefault("llm.timeoutSec", 10)
	v.SetDefault("llm.institution", "State Institute of Technology")

	v.SetDefault("translation.endpoint", "https://translate.googleapis.com/translate_a/single")
	v.SetDefault("translation.workers", 2)
	v.SetDefault("translation.detectTimeoutSec", 5)
	v.SetDefault("translation.timeoutSec", 8)

	v.SetDefault("voice.apiKey", "")
	v.SetDefault("voice.sttEndpoint", "https://api.sarvam.ai/v1/audio/transcribe")
	v.SetDefault("voice.ttsEndpoint", "https://api.sarvam.ai/v1/audio/synthesize")
	v.SetDefault("voice.voice", "default")
	v.SetDefault("voice.format", "wav")
	v.SetDefault("voice.timeoutSec", 30)
	v.SetDefault("voice.ffmpegPath", "ffmpeg")

	v.SetDefault("knowledge.path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}
