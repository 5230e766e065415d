package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

// Transport kinds accepted in TRANSPORT.
const (
	TransportSSE   = "sse"
	TransportStdio = "stdio"
)

// LLM providers accepted in LLM_PROVIDER.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderDeepSeek   = "deepseek"
)

// Settings holds the process-wide configuration. It is built once by Load
// and must be treated as read-only afterwards.
// Variable names carry no prefix so they match the documented .env surface.
type Settings struct {
	Transport string `envconfig:"TRANSPORT" default:"sse"`
	Host      string `envconfig:"HOST" default:"0.0.0.0"`
	Port      int    `envconfig:"PORT" default:"8050"`

	LLMProvider string `envconfig:"LLM_PROVIDER" default:"openai"`
	LLMBaseURL  string `envconfig:"LLM_BASE_URL"`
	LLMAPIKey   string `envconfig:"LLM_API_KEY"`
	LLMChoice   string `envconfig:"LLM_CHOICE"`

	EmbeddingBaseURL     string `envconfig:"EMBEDDING_BASE_URL"`
	EmbeddingAPIKey      string `envconfig:"EMBEDDING_API_KEY"`
	EmbeddingDims        int    `envconfig:"EMBEDDING_DIMS" default:"1024"`
	EmbeddingModelChoice string `envconfig:"EMBEDDING_MODEL_CHOICE"`

	DatabaseURL    string `envconfig:"DATABASE_URL" required:"true"`
	CollectionName string `envconfig:"COLLECTION_NAME" default:"mem0_memories"`
	HistoryDBPath  string `envconfig:"HISTORY_DB_PATH" default:"./data/history.db"`

	DefaultUserID  string `envconfig:"DEFAULT_USER_ID" default:"user"`
	InferMemories  bool   `envconfig:"INFER_MEMORIES" default:"true"`
	PromptsFile    string `envconfig:"PROMPTS_FILE"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	ServerName     string `envconfig:"MCP_SERVER_NAME" default:"mcp-mem0"`
	ServerVersion  string `envconfig:"MCP_SERVER_VERSION" default:"0.3.0"`
	LLMMaxRetries  int    `envconfig:"LLM_MAX_RETRIES" default:"3"`
	SearchPoolSize int    `envconfig:"SEARCH_POOL_SIZE" default:"5"`

	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	HealthInterval     time.Duration `envconfig:"HEALTH_INTERVAL" default:"30s"`
	HealthProbeTimeout time.Duration `envconfig:"HEALTH_PROBE_TIMEOUT" default:"5s"`
	LLMTimeout         time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`
}

// Load reads the optional dotenv files (".env" when none are given), then
// the environment, and validates the result. Variables already present in the
// environment take precedence over dotenv values.
func Load(envFiles ...string) (*Settings, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) normalize() {
	s.Transport = strings.ToLower(strings.TrimSpace(s.Transport))
	s.LLMProvider = strings.ToLower(strings.TrimSpace(s.LLMProvider))
	s.Host = strings.TrimSpace(s.Host)
	s.DatabaseURL = strings.TrimSpace(s.DatabaseURL)
	s.LLMBaseURL = strings.TrimRight(strings.TrimSpace(s.LLMBaseURL), "/")
	s.EmbeddingBaseURL = strings.TrimRight(strings.TrimSpace(s.EmbeddingBaseURL), "/")
	if s.EmbeddingAPIKey == "" {
		s.EmbeddingAPIKey = s.LLMAPIKey
	}
}

// Validate checks every field and reports all problems at once.
func (s *Settings) Validate() error {
	var errs []error

	switch s.Transport {
	case TransportSSE:
		if s.Host == "" {
			errs = append(errs, errors.New("HOST is required when TRANSPORT=sse"))
		}
		if s.Port < 1 || s.Port > 65535 {
			errs = append(errs, fmt.Errorf("PORT must be in 1..65535 when TRANSPORT=sse, got %d", s.Port))
		}
	case TransportStdio:
	default:
		errs = append(errs, fmt.Errorf("unsupported TRANSPORT %q (want sse or stdio)", s.Transport))
	}

	switch s.LLMProvider {
	case ProviderOpenAI, ProviderOpenRouter, ProviderOllama, ProviderDeepSeek:
	default:
		errs = append(errs, fmt.Errorf("unsupported LLM_PROVIDER %q (want openai, openrouter, ollama or deepseek)", s.LLMProvider))
	}
	if s.LLMProvider != ProviderOllama && s.LLMAPIKey == "" {
		errs = append(errs, fmt.Errorf("LLM_API_KEY is required when LLM_PROVIDER=%s", s.LLMProvider))
	}
	if s.EmbeddingBaseURL == "" && s.EmbeddingAPIKey == "" {
		errs = append(errs, errors.New("EMBEDDING_API_KEY or LLM_API_KEY is required for OpenAI embeddings (set EMBEDDING_BASE_URL to use Ollama)"))
	}
	for name, raw := range map[string]string{"LLM_BASE_URL": s.LLMBaseURL, "EMBEDDING_BASE_URL": s.EmbeddingBaseURL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL, got %q", name, raw))
		}
	}

	if s.EmbeddingDims <= 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIMS must be positive, got %d", s.EmbeddingDims))
	}

	if s.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	} else if _, err := pgx.ParseConfig(s.DatabaseURL); err != nil {
		errs = append(errs, fmt.Errorf("DATABASE_URL is not a valid Postgres DSN: %w", err))
	}
	if !validIdentifier(s.CollectionName) {
		errs = append(errs, fmt.Errorf("COLLECTION_NAME %q must match [a-zA-Z_][a-zA-Z0-9_]*", s.CollectionName))
	}
	if strings.TrimSpace(s.DefaultUserID) == "" {
		errs = append(errs, errors.New("DEFAULT_USER_ID must not be empty"))
	}
	if s.LLMMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("LLM_MAX_RETRIES must not be negative, got %d", s.LLMMaxRetries))
	}
	if s.SearchPoolSize <= 0 {
		errs = append(errs, fmt.Errorf("SEARCH_POOL_SIZE must be positive, got %d", s.SearchPoolSize))
	}

	return errors.Join(errs...)
}

// IsSSE reports whether the network listener transport is selected.
func (s *Settings) IsSSE() bool { return s.Transport == TransportSSE }

// IsStdio reports whether the stdio transport is selected.
func (s *Settings) IsStdio() bool { return s.Transport == TransportStdio }

// Addr returns the SSE listen address.
func (s *Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// LogSummary writes the non-secret configuration to l.
func (s *Settings) LogSummary(l zerolog.Logger) {
	r := s.Redacted()
	ev := l.Info().
		Str("transport", s.Transport).
		Str("llm_provider", s.LLMProvider).
		Str("llm_choice", s.LLMChoice).
		Str("llm_base_url", s.LLMBaseURL).
		Bool("llm_api_key_present", s.LLMAPIKey != "").
		Str("embedding_base_url", s.EmbeddingBaseURL).
		Str("embedding_model", s.EmbeddingModelChoice).
		Int("embedding_dims", s.EmbeddingDims).
		Str("database_url", r.DatabaseURL).
		Str("collection", s.CollectionName).
		Str("history_db", s.HistoryDBPath).
		Bool("infer", s.InferMemories)
	if s.IsSSE() {
		ev = ev.Str("addr", s.Addr())
	}
	ev.Msg("Configuration loaded")
}

// Redacted returns a copy that is safe to log: API keys are masked and the
// DSN password is hidden.
func (s Settings) Redacted() Settings {
	s.LLMAPIKey = mask(s.LLMAPIKey)
	s.EmbeddingAPIKey = mask(s.EmbeddingAPIKey)
	s.DatabaseURL = RedactDSN(s.DatabaseURL)
	return s
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "xxxxx"
}

// RedactDSN masks the password of a URL-form DSN. Keyword/value DSNs are not
// echoed at all.
func RedactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "[redacted]"
	}
	return u.Redacted()
}

func validIdentifier(s string) bool {
	if s == "" || len(s) > 63 {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
