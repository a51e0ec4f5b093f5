package main

import (
	"chat-backend/cmd"
	"chat-backend/internal/messaging"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
)

type WorkerConfig struct {
	RabbitMQURL string `env:"RABBITMQ_URL,notEmpty,required"`
}

func main() {
	log.Println("Starting Worker Process...")

	cmd.LoadEnvFile()

	var cfg WorkerConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	worker := messaging.NewWorker(receiver, messaging.LogMessageCreated)
	go worker.Start()

	log.Println("Worker started. Waiting for message events. Press Ctrl+C to exit.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutdown signal received, stopping worker...")

	worker.Stop()
	<-worker.Done()

	log.Println("Worker process stopped.")
}
