// Package config loads the service's environment-variable surface into a
// typed Config, matching spec §6's Configuration surface table. Load reads an
// optional .env file first, then each environment variable with a typed
// default; tests can also construct a Config by hand.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LLM holds the default provider/model selection and timeout knobs.
type LLM struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Vendor holds a single provider family's credentials and overrides.
type Vendor struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Plugins holds the plugin subsystem's knobs.
type Plugins struct {
	Directory  string
	AutoReload bool
	Timeout    time.Duration
	MaxRetries int
}

// Profile holds the profile-fetch plugin's external-provider configuration.
type Profile struct {
	Cookie            string
	ExternalServerURL string
	DockerEnv         bool
}

// Auth holds the bearer-token auth knobs (the core only consumes a populated
// SecretKey; token issuance itself is out of scope per spec §1).
type Auth struct {
	SecretKey          string
	AccessTokenExpires time.Duration
	Algorithm          string
}

// CORS holds the standard cross-origin knobs, consumed by the HTTP layer
// only, never by the core components.
type CORS struct {
	Origins []string
	Methods []string
	Headers []string
}

// Logging holds the ambient logging knobs.
type Logging struct {
	Level  string
	Format string
}

// Config is the complete populated settings object the core expects to be
// handed at construction time.
type Config struct {
	LLM               LLM
	OpenAI            Vendor
	Anthropic         Vendor
	PDFModelAnthropic string
	PDFModelOpenAI    string
	Profile           Profile
	Plugins           Plugins
	Auth              Auth
	CORS              CORS
	Logging           Logging
}

// Load reads the environment-variable surface from spec §6, optionally first
// loading a .env file via godotenv (a no-op if the file is absent).
func Load() Config {
	_ = godotenv.Load()

	return Config{
		LLM: LLM{
			Provider:    getenv("LLM_PROVIDER", "openai"),
			Model:       getenv("LLM_MODEL", "gpt-4o-mini"),
			Temperature: getenvFloat("LLM_TEMPERATURE", 0.2),
			MaxTokens:   getenvInt("LLM_MAX_TOKENS", 4096),
			Timeout:     getenvSeconds("LLM_TIMEOUT", 48*time.Second),
		},
		OpenAI: Vendor{
			APIKey:    os.Getenv("OPENAI_API_KEY"),
			Model:     getenv("OPENAI_MODEL", "gpt-4o-mini"),
			MaxTokens: getenvInt("OPENAI_MAX_TOKENS", 4096),
			Timeout:   getenvSeconds("OPENAI_TIMEOUT", 60*time.Second),
		},
		Anthropic: Vendor{
			APIKey:    os.Getenv("ANTHROPIC_API_KEY"),
			Model:     getenv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
			MaxTokens: getenvInt("ANTHROPIC_MAX_TOKENS", 4096),
			Timeout:   getenvSeconds("LLM_TIMEOUT", 48*time.Second),
		},
		PDFModelAnthropic: getenv("PDF_PARSING_MODEL_ANTHROPIC", "claude-3-5-haiku-20241022"),
		PDFModelOpenAI:    getenv("PDF_PARSING_MODEL_OPENAI", "gpt-4o-mini"),
		Profile: Profile{
			Cookie:            os.Getenv("LINKEDIN_COOKIE"),
			ExternalServerURL: os.Getenv("LINKEDIN_EXTERNAL_SERVER_URL"),
			DockerEnv:         getenvBool("DOCKER_ENV", false),
		},
		Plugins: Plugins{
			Directory:  getenv("PLUGIN_DIRECTORY", "plugins"),
			AutoReload: getenvBool("PLUGIN_AUTO_RELOAD", false),
			Timeout:    getenvSeconds("PLUGIN_TIMEOUT", 30*time.Second),
			MaxRetries: getenvInt("PLUGIN_MAX_RETRIES", 3),
		},
		Auth: Auth{
			SecretKey:          os.Getenv("SECRET_KEY"),
			AccessTokenExpires: time.Duration(getenvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)) * time.Minute,
			Algorithm:          getenv("ALGORITHM", "HS256"),
		},
		CORS: CORS{
			Origins: splitCSV(getenv("CORS_ORIGINS", "*")),
			Methods: splitCSV(getenv("CORS_METHODS", "GET,POST,DELETE")),
			Headers: splitCSV(getenv("CORS_HEADERS", "*")),
		},
		Logging: Logging{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "text"),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvSeconds(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
