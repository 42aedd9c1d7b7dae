package config

import "os"

type Config struct {
	ListenAddr string
	DBPath     string

	DetectBackend string
	GatewayURL    string
	GatewayAPIKey string
	GatewayModel  string
	ChatURL       string
	ChatAPIKey    string
	ChatModel     string
	ClaudeAPIKey  string
	ClaudeModel   string
	OllamaHost    string
	OllamaModel   string

	PhotoPath string
	LogLevel  string
	LogFile   string
}

func Load() *Config {
	gatewayURL := getEnv("AI_GATEWAY_URL", "https://ai.gateway.lovable.dev/v1/chat/completions")
	gatewayKey := getEnv("AI_GATEWAY_API_KEY", "")
	return &Config{
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		DBPath:        getEnv("DB_PATH", "/data/ilmigreen.db"),
		DetectBackend: getEnv("DETECT_BACKEND", "gateway"),
		GatewayURL:    gatewayURL,
		GatewayAPIKey: gatewayKey,
		GatewayModel:  getEnv("AI_MODEL", "google/gemini-2.5-flash"),
		// The chat endpoint shares the gateway unless pointed elsewhere.
		ChatURL:      getEnv("CHAT_URL", gatewayURL),
		ChatAPIKey:   getEnv("CHAT_API_KEY", gatewayKey),
		ChatModel:    getEnv("CHAT_MODEL", "google/gemini-2.5-flash"),
		ClaudeAPIKey: getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:  getEnv("CLAUDE_MODEL", "claude-sonnet-4-5"),
		OllamaHost:   getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:  getEnv("OLLAMA_MODEL", "llava"),
		PhotoPath:    getEnv("PHOTO_LOCAL_PATH", "/data/photos"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFile:      getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}
