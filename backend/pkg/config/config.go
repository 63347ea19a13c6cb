package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "sysdesign-assistant/backend/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Port     string
	Env      string
	LogLevel string

	// OpenAI
	OpenAIAPIKey  string
	OpenAIBaseURL string
	ModelID       string // assistant model, fixed for every agent the session creates
	ChatModelID   string

	// Handle cache
	HandleStore string // env, file, memory, neo4j
	HandleFile  string

	// Neo4j (only for HandleStore=neo4j)
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Pipeline
	PipelineMode  string // multi or single
	DesignerMode  string // pipeline or chat
	DesignPrompt  string
	PromptURL     string
	MaxToolRounds int
	PollInterval  time.Duration
	RunTimeout    time.Duration // zero means no deadline

	// Discord
	DiscordBotToken string
}

// Handle store kinds
const (
	HandleStoreEnv    = "env"
	HandleStoreFile   = "file"
	HandleStoreMemory = "memory"
	HandleStoreNeo4j  = "neo4j"
)

// Pipeline modes
const (
	PipelineModeMulti  = "multi"
	PipelineModeSingle = "single"
)

// Designer modes
const (
	DesignerModePipeline = "pipeline"
	DesignerModeChat     = "chat"
)

// DefaultPrompt is used by the CLI when neither DESIGN_PROMPT nor DESIGN_PROMPT_URL is set
const DefaultPrompt = "Design the complete architecture for adding a short-form video (reels) feature to a video platform, built on AWS."

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ModelID:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		ChatModelID:     getEnv("OPENAI_CHAT_MODEL", "gpt-3.5-turbo"),
		HandleStore:     strings.ToLower(getEnv("HANDLE_STORE", HandleStoreEnv)),
		HandleFile:      getEnv("HANDLE_FILE", ".assistants.env"),
		Neo4jURI:        getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:       getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:   getEnv("NEO4J_PASSWORD", ""),
		PipelineMode:    strings.ToLower(getEnv("PIPELINE_MODE", PipelineModeMulti)),
		DesignerMode:    strings.ToLower(getEnv("DESIGNER_MODE", DesignerModePipeline)),
		DesignPrompt:    getEnv("DESIGN_PROMPT", DefaultPrompt),
		PromptURL:       getEnv("DESIGN_PROMPT_URL", ""),
		MaxToolRounds:   getEnvInt("MAX_TOOL_ROUNDS", 5),
		PollInterval:    getEnvDuration("POLL_INTERVAL", time.Second),
		RunTimeout:      getEnvDuration("RUN_TIMEOUT", 0),
		DiscordBotToken: getEnv("DISCORD_BOT_TOKEN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return apperrors.NewConfigMissingRequired("OPENAI_API_KEY")
	}
	if c.ModelID == "" {
		return apperrors.NewConfigMissingRequired("OPENAI_MODEL")
	}
	switch c.HandleStore {
	case HandleStoreEnv, HandleStoreMemory:
	case HandleStoreFile:
		if c.HandleFile == "" {
			return apperrors.NewConfigMissingRequired("HANDLE_FILE")
		}
	case HandleStoreNeo4j:
		if c.Neo4jURI == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
		if c.Neo4jPassword == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
		}
	default:
		return apperrors.NewConfigValidationFailed("HANDLE_STORE", fmt.Sprintf("unknown store %q", c.HandleStore))
	}
	if c.PipelineMode != PipelineModeMulti && c.PipelineMode != PipelineModeSingle {
		return apperrors.NewConfigValidationFailed("PIPELINE_MODE", fmt.Sprintf("unknown mode %q", c.PipelineMode))
	}
	if c.DesignerMode != DesignerModePipeline && c.DesignerMode != DesignerModeChat {
		return apperrors.NewConfigValidationFailed("DESIGNER_MODE", fmt.Sprintf("unknown mode %q", c.DesignerMode))
	}
	if c.MaxToolRounds < 1 {
		return apperrors.NewConfigValidationFailed("MAX_TOOL_ROUNDS", "must be at least 1")
	}
	if c.PollInterval <= 0 {
		return apperrors.NewConfigValidationFailed("POLL_INTERVAL", "must be positive")
	}
	// Discord token is only checked by the bot
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
