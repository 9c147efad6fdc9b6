package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Host        string
	Port        string
	MountPrefix string
	CORSOrigins []string
	APIVersion  string
	LogLevel    string

	// Gateway selects the model backend: "openai", "gemini", "anthropic"
	// or "mock" (useful for dev).
	Gateway string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	GCPProjectID string
	GCPLocation  string
	GeminiModel  string

	AnthropicModel string

	// DefaultPromptPath points at the deployment's default system prompt
	// file; empty means the built-in prompt.
	DefaultPromptPath string

	// DocumentsPath, when set, is walked at startup and the extracted
	// text is appended to the default prompt.
	DocumentsPath string

	// FinanceTickers, when set, are fetched at startup and the rendered
	// quote tables are appended to the default prompt.
	FinanceTickers []string
	FinancePeriod  string

	// RestTimeoutSeconds bounds REST additional fetches.
	RestTimeoutSeconds int
}

// DefaultModel returns the default model for the selected gateway backend,
// used when an init request does not name one.
func (c *Config) DefaultModel() string {
	switch c.Gateway {
	case "gemini":
		return c.GeminiModel
	case "anthropic":
		return c.AnthropicModel
	default:
		return c.OpenAIModel
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Load reads all env vars and builds the config
func Load() *Config {
	return &Config{
		Host:        getEnv("HTTP_HOST", "0.0.0.0"),
		Port:        getEnv("HTTP_PORT", "8000"),
		MountPrefix: strings.Trim(getEnv("MOUNT_PREFIX", ""), "/"),
		CORSOrigins: strings.Split(getEnv("CORS", "*"), ","),
		APIVersion:  getEnv("API_VERSION", "1.0.0"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		Gateway: getEnv("QNA_GATEWAY", "openai"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:   getEnv("OPENAI_MODEL", ""),

		GCPProjectID: getEnv("QNA_GCP_PROJECT", ""),
		GCPLocation:  getEnv("QNA_GCP_LOCATION", "us-central1"),
		GeminiModel:  getEnv("QNA_GEMINI_MODEL", "gemini-2.5-flash"),

		AnthropicModel: getEnv("QNA_ANTHROPIC_MODEL", ""),

		DefaultPromptPath: getEnv("QNA_DEFAULT_PROMPT_PATH", "prompt/default_prompt.txt"),
		DocumentsPath:     getEnv("QNA_DOCUMENTS_PATH", ""),

		FinanceTickers: splitList(getEnv("QNA_FINANCE_TICKERS", "")),
		FinancePeriod:  getEnv("QNA_FINANCE_PERIOD", "1mo"),

		RestTimeoutSeconds: getIntEnv("QNA_REST_TIMEOUT_SECONDS", 30),
	}
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
