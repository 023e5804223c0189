package model

import "time"

// ================ Config ================
type AgentConfig struct {
	MaxIterations       int    `envconfig:"AGENT_MAX_ITERATIONS" default:"5"`
	DefaultStoreName    string `envconfig:"AGENT_DEFAULT_STORE_NAME" default:"our store"`
	DefaultInstructions string `envconfig:"AGENT_DEFAULT_INSTRUCTIONS"`
}

type ConversationConfig struct {
	TTL      time.Duration `envconfig:"CONVERSATION_TTL" default:"24h"`
	MaxTurns int           `envconfig:"CONVERSATION_MAX_TURNS" default:"20"`
}

type LLMConfig struct {
	Provider    string  `envconfig:"LLM_PROVIDER" default:"anthropic"`
	MaxTokens   int     `envconfig:"LLM_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"LLM_TEMPERATURE" default:"0.3"`

	AnthropicAPIKey  string        `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL string        `envconfig:"ANTHROPIC_BASE_URL" default:"https://api.anthropic.com"`
	AnthropicModel   string        `envconfig:"ANTHROPIC_MODEL" default:"claude-3-5-haiku-20241022"`
	AnthropicVersion string        `envconfig:"ANTHROPIC_VERSION" default:"2023-06-01"`
	Timeout          time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`

	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL"`
	GeminiModel   string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
}

type EmbeddingConfig struct {
	APIKey    string        `envconfig:"VOYAGE_API_KEY"`
	BaseURL   string        `envconfig:"VOYAGE_BASE_URL" default:"https://api.voyageai.com"`
	Model     string        `envconfig:"EMBEDDING_MODEL" default:"voyage-3-lite"`
	BatchSize int           `envconfig:"EMBEDDING_BATCH_SIZE" default:"128"`
	Timeout   time.Duration `envconfig:"EMBEDDING_TIMEOUT" default:"30s"`
	// Dimensions must match the vector(N) columns of the catalog schema.
	// Zero skips the check.
	Dimensions int `envconfig:"EMBEDDING_DIMENSIONS" default:"512"`
}

type RetryConfig struct {
	MaxRetries    int           `envconfig:"RETRY_MAX_RETRIES" default:"3"`
	InitialDelay  time.Duration `envconfig:"RETRY_INITIAL_DELAY" default:"500ms"`
	MaxDelay      time.Duration `envconfig:"RETRY_MAX_DELAY" default:"8s"`
	BackoffFactor float64       `envconfig:"RETRY_BACKOFF_FACTOR" default:"2"`
}

type RetrievalConfig struct {
	MinSimilarity float64 `envconfig:"RETRIEVAL_MIN_SIMILARITY" default:"0.25"`
	CatalogLimit  int     `envconfig:"RETRIEVAL_CATALOG_LIMIT" default:"5"`
	FAQLimit      int     `envconfig:"RETRIEVAL_FAQ_LIMIT" default:"3"`
}

type TenantCacheConfig struct {
	TTL  time.Duration `envconfig:"TENANT_CACHE_TTL" default:"5m"`
	Size int           `envconfig:"TENANT_CACHE_SIZE" default:"1024"`
}

type CommerceConfig struct {
	APIVersion     string        `envconfig:"SHOPIFY_API_VERSION" default:"2024-10"`
	Timeout        time.Duration `envconfig:"COMMERCE_TIMEOUT" default:"15s"`
	CartSessionTTL time.Duration `envconfig:"CART_SESSION_TTL" default:"72h"`
}
