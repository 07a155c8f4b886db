package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"maildns/internal/bootstrap"
	"maildns/internal/handler"
	httphandler "maildns/internal/handler/http"
	"maildns/internal/handler/telegram"
	"maildns/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.TelegramBotToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is required")
	}

	app, err := bootstrap.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	handlers := []handler.Handler{
		telegram.NewBot(app.Usecase, app.Storage, cfg.TelegramBotToken, cfg.IsAllowedUser),
	}
	if cfg.HTTPListen != "" {
		handlers = append(handlers, httphandler.NewServer(app.Usecase, cfg.HTTPListen))
	}

	for _, h := range handlers {
		go func(h handler.Handler) {
			if err := h.Start(); err != nil {
				log.Fatalf("Handler error: %v", err)
			}
		}(h)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Println("Bot is running. Press Ctrl+C to stop.")
	<-sigChan

	log.Println("Shutting down...")
	for i := len(handlers) - 1; i >= 0; i-- {
		if err := handlers[i].Stop(); err != nil {
			log.Printf("Error stopping handler: %v", err)
		}
	}

	log.Println("Bot stopped.")
}
