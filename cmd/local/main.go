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
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Root       string `env:"ROOT" envDefault:"./chat-backend"`
	Port       int    `env:"SERVER_PORT" envDefault:"2022"`
	DBPath     string `env:"DB_PATH" envDefault:"./chat-backend/db/chat.db"`
	AtomicSend bool   `env:"ATOMIC_SEND" envDefault:"false"`
}

func main() {
	cmd.LoadEnvFile()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating directory for log file: %v", err)
	}

	f, err := os.OpenFile(filepath.Join(cfg.Root, "backend.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	log.SetOutput(io.MultiWriter(f, os.Stderr))

	slog.Info("starting backend", "root", cfg.Root, "port", cfg.Port, "db_path", cfg.DBPath, "atomic_send", cfg.AtomicSend)

	db, err := database.NewSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	queue := messaging.NewInMemoryQueue()
	worker := messaging.NewWorker(queue, messaging.LogMessageCreated)

	chatService := api.NewChatService(chat.NewService(db, agents.NewTemplateResponder(), queue, cfg.AtomicSend))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: cmd.NewRouter(chatService),
	}

	slog.Info("starting worker")
	go worker.Start()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}

		slog.Info("shutting down worker")
		worker.Stop()
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	<-worker.Done()
	slog.Info("server stopped")
}
