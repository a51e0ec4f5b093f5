package main

import (
	"chat-backend/cmd"
	"chat-backend/internal/agents"
	"chat-backend/internal/api"
	"chat-backend/internal/chat"
	"chat-backend/internal/database"
	"chat-backend/internal/messaging"
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
)

type APIConfig struct {
	DatabaseURL string `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	Port        int    `env:"SERVER_PORT" envDefault:"2022"`
	AtomicSend  bool   `env:"ATOMIC_SEND" envDefault:"false"`
}

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	var publisher messaging.Publisher
	var worker *messaging.Worker
	if cfg.RabbitMQURL != "" {
		rabbit, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		publisher = rabbit
	} else {
		slog.Info("RABBITMQ_URL not set, message events are handled in process")
		queue := messaging.NewInMemoryQueue()
		worker = messaging.NewWorker(queue, messaging.LogMessageCreated)
		go worker.Start()
		publisher = queue
	}
	defer publisher.Close()

	chatService := api.NewChatService(chat.NewService(db, agents.NewTemplateResponder(), publisher, cfg.AtomicSend))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: cmd.NewRouter(chatService),
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		if worker != nil {
			worker.Stop()
		}
	}()

	log.Printf("API server listening on port %d", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	log.Println("Server stopped.")
}
