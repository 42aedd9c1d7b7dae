package main

import (
	"errors"
	"fmt"
	"log"
	"log/slog"

	"github.com/vbonduro/ilmigreen/internal/chat"
	"github.com/vbonduro/ilmigreen/internal/config"
	"github.com/vbonduro/ilmigreen/internal/db"
	"github.com/vbonduro/ilmigreen/internal/detect"
	claudedetect "github.com/vbonduro/ilmigreen/internal/detect/claude"
	gatewaydetect "github.com/vbonduro/ilmigreen/internal/detect/gateway"
	ollamadetect "github.com/vbonduro/ilmigreen/internal/detect/ollama"
	"github.com/vbonduro/ilmigreen/internal/logging"
	"github.com/vbonduro/ilmigreen/internal/photostore/local"
	"github.com/vbonduro/ilmigreen/internal/service"
	"github.com/vbonduro/ilmigreen/internal/store"
	"github.com/vbonduro/ilmigreen/internal/web"
	"github.com/vbonduro/ilmigreen/internal/web/templates"
)

func main() {
	cfg := config.Load()

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	detector, err := newDetector(cfg, logger)
	if err != nil {
		logger.Error("failed to configure detector", "error", err)
		return
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		return
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	photoStg, err := local.NewLocalPhotoStore(cfg.PhotoPath)
	if err != nil {
		logger.Error("failed to initialize photo store", "error", err)
		return
	}

	if cfg.ChatAPIKey == "" {
		logger.Warn("CHAT_API_KEY and AI_GATEWAY_API_KEY are empty; chat requests are sent unauthenticated")
	}
	chatClient := chat.NewClient(cfg.ChatURL, cfg.ChatAPIKey, cfg.ChatModel, logger)

	wasteService := service.NewWasteService(store.NewDetectionStore(database), detector, photoStg, logger)
	chatService := service.NewChatService(store.NewConversationStore(database), chatClient, logger)
	server := web.NewServer(wasteService, chatService, templates.FS, photoStg, logger)

	if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}

func newDetector(cfg *config.Config, logger *slog.Logger) (detect.Detector, error) {
	switch cfg.DetectBackend {
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			return nil, errors.New("CLAUDE_API_KEY is required when DETECT_BACKEND=claude")
		}
		logger.Info("using Claude detection backend", "model", cfg.ClaudeModel)
		return claudedetect.NewClaudeDetector(cfg.ClaudeAPIKey, cfg.ClaudeModel), nil
	case "ollama":
		logger.Info("using Ollama detection backend", "model", cfg.OllamaModel)
		return ollamadetect.NewOllamaDetector(cfg.OllamaHost, cfg.OllamaModel), nil
	case "gateway", "":
		if cfg.GatewayAPIKey == "" {
			return nil, errors.New("AI_GATEWAY_API_KEY is required when DETECT_BACKEND=gateway")
		}
		logger.Info("using AI gateway detection backend", "model", cfg.GatewayModel)
		return gatewaydetect.NewGatewayDetector(cfg.GatewayURL, cfg.GatewayAPIKey, cfg.GatewayModel), nil
	default:
		return nil, fmt.Errorf("unknown DETECT_BACKEND %q", cfg.DetectBackend)
	}
}
