package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/hongdnn/leadsync/core/db"
)

type Config struct {
	LLM          LLMConfig
	Jira         JiraConfig
	GitHub       GitHubConfig
	GitLab       GitLabConfig
	Slack        SlackConfig
	GoogleDocs   GoogleDocsConfig
	Memory       MemoryConfig
	Digest       DigestConfig
	PR           PRConfig
	Cache        CacheConfig
	OTel         OTelConfig
	Env          string
	Port         string
	CodeHost     string
	ArtifactDir  string
	TriggerToken string
	DB           db.Config
}

type LLMConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	FallbackModel string
}

type JiraConfig struct {
	BaseURL  string
	Email    string
	APIToken string
}

type GitHubConfig struct {
	Token     string
	RepoOwner string
	RepoName  string
}

type GitLabConfig struct {
	BaseURL string
	Token   string
}

type SlackConfig struct {
	BotToken  string
	ChannelID string
}

type GoogleDocsConfig struct {
	AccessToken   string
	FrontendDocID string
	BackendDocID  string
	DatabaseDocID string
}

type MemoryConfig struct {
	Enabled bool
}

type DigestConfig struct {
	WindowMinutes      int
	IdempotencyEnabled bool
}

type PRConfig struct {
	AISections bool
}

type CacheConfig struct {
	RedisURL   string
	TTLMinutes int
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

const (
	CodeHostGitHub = "github"
	CodeHostGitLab = "gitlab"
)

// Load loads configuration from environment variables.
// In development it loads .env first so local runs need no exported vars.
func Load() (Config, error) {
	if getEnv("LEADSYNC_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:          getEnv("LEADSYNC_ENV", "development"),
		Port:         getEnv("LEADSYNC_PORT", "8080"),
		CodeHost:     getEnv("LEADSYNC_CODE_HOST", CodeHostGitHub),
		ArtifactDir:  getEnv("LEADSYNC_ARTIFACT_DIR", "artifacts"),
		TriggerToken: getEnv("LEADSYNC_TRIGGER_TOKEN", ""),
		DB: db.Config{
			Path: getEnv("LEADSYNC_MEMORY_DB_PATH", "data/leadsync_memory.db"),
		},
		LLM: LLMConfig{
			APIKey:        geminiAPIKey(),
			BaseURL:       getEnv("LEADSYNC_GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai/"),
			Model:         getEnv("LEADSYNC_GEMINI_MODEL", "gemini-2.5-flash"),
			FallbackModel: getEnv("LEADSYNC_GEMINI_FALLBACK_MODEL", "gemini-2.5-flash"),
		},
		Jira: JiraConfig{
			BaseURL:  getEnv("JIRA_BASE_URL", ""),
			Email:    getEnv("JIRA_EMAIL", ""),
			APIToken: getEnv("JIRA_API_TOKEN", ""),
		},
		GitHub: GitHubConfig{
			Token:     githubToken(),
			RepoOwner: getEnv("LEADSYNC_GITHUB_REPO_OWNER", ""),
			RepoName:  getEnv("LEADSYNC_GITHUB_REPO_NAME", ""),
		},
		GitLab: GitLabConfig{
			BaseURL: getEnv("LEADSYNC_GITLAB_BASE_URL", "https://gitlab.com"),
			Token:   getEnv("LEADSYNC_GITLAB_TOKEN", ""),
		},
		Slack: SlackConfig{
			BotToken:  getEnv("SLACK_BOT_TOKEN", ""),
			ChannelID: getEnv("SLACK_CHANNEL_ID", ""),
		},
		GoogleDocs: GoogleDocsConfig{
			AccessToken:   getEnv("GOOGLE_DOCS_ACCESS_TOKEN", ""),
			FrontendDocID: getEnv("LEADSYNC_FRONTEND_PREFS_DOC_ID", ""),
			BackendDocID:  getEnv("LEADSYNC_BACKEND_PREFS_DOC_ID", ""),
			DatabaseDocID: getEnv("LEADSYNC_DATABASE_PREFS_DOC_ID", ""),
		},
		Memory: MemoryConfig{
			Enabled: getEnvBool("LEADSYNC_MEMORY_ENABLED", true),
		},
		Digest: DigestConfig{
			WindowMinutes:      getEnvInt("LEADSYNC_DIGEST_WINDOW_MINUTES", 1440),
			IdempotencyEnabled: getEnvBool("LEADSYNC_DIGEST_IDEMPOTENCY_ENABLED", true),
		},
		PR: PRConfig{
			AISections: getEnvBool("LEADSYNC_PR_AI_SECTIONS", false),
		},
		Cache: CacheConfig{
			RedisURL:   getEnv("REDIS_URL", ""),
			TTLMinutes: getEnvInt("LEADSYNC_CACHE_TTL_MINUTES", 5),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "leadsync"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
	}

	if cfg.LLM.APIKey == "" {
		return Config{}, fmt.Errorf("GEMINI_API_KEY (or GOOGLE_API_KEY) is required")
	}
	if cfg.CodeHost != CodeHostGitHub && cfg.CodeHost != CodeHostGitLab {
		return Config{}, fmt.Errorf("LEADSYNC_CODE_HOST must be 'github' or 'gitlab', got %q", cfg.CodeHost)
	}
	if cfg.Digest.WindowMinutes <= 0 {
		return Config{}, fmt.Errorf("LEADSYNC_DIGEST_WINDOW_MINUTES must be positive")
	}

	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c JiraConfig) Enabled() bool {
	return c.BaseURL != "" && c.Email != "" && c.APIToken != ""
}

func (c GitHubConfig) HasRepoTarget() bool {
	return c.RepoOwner != "" && c.RepoName != ""
}

func (c GitLabConfig) Enabled() bool {
	return c.Token != ""
}

func (c SlackConfig) Enabled() bool {
	return c.BotToken != ""
}

func (c GoogleDocsConfig) Enabled() bool {
	return c.AccessToken != ""
}

func (c CacheConfig) Enabled() bool {
	return c.RedisURL != ""
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

// geminiAPIKey honors the legacy GOOGLE_API_KEY name still set in
// older deployments.
func geminiAPIKey() string {
	if key := strings.TrimSpace(getEnv("GEMINI_API_KEY", "")); key != "" {
		return key
	}
	return strings.TrimSpace(getEnv("GOOGLE_API_KEY", ""))
}

func githubToken() string {
	if token := strings.TrimSpace(getEnv("LEADSYNC_GITHUB_TOKEN", "")); token != "" {
		return token
	}
	return strings.TrimSpace(getEnv("GITHUB_TOKEN", ""))
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}
