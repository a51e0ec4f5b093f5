package main

import (
	"chat-backend/cmd"
	"chat-backend/pkg/api"
	"chat-backend/pkg/client"
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
)

type ClientConfig struct {
	ServerURL string `env:"CHAT_SERVER_URL" envDefault:"http://localhost:2022"`
}

func main() {
	server := flag.String("server", "", "backend url, overrides CHAT_SERVER_URL")
	userId := flag.Uint("user", 0, "id of an existing user")
	username := flag.String("username", "demo_user", "username for a new user")
	email := flag.String("email", "", "email for a new user, required when -user is not set")
	agent := flag.String("agent", "", "initial agent type")

	cmd.LoadEnvFile()

	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}
	if *server != "" {
		cfg.ServerURL = *server
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(cfg.ServerURL)
	if _, err := c.Healthcheck(ctx); err != nil {
		log.Fatalf("backend at %s is not reachable: %v", cfg.ServerURL, err)
	}

	var user api.User
	if *userId != 0 {
		user = api.User{Id: *userId, Username: *username}
	} else {
		if *email == "" {
			log.Fatalf("either -user or -email must be provided")
		}
		created, err := c.CreateUser(ctx, *username, *email)
		if err != nil {
			log.Fatalf("error creating user: %v", err)
		}
		user = created
		log.Printf("created user %s with id %d, pass -user %d next time", user.Username, user.Id, user.Id)
	}

	session := client.NewSession(c, user)
	if *agent != "" {
		if err := session.SetAgentType(*agent); err != nil {
			log.Fatalf("invalid -agent: %v", err)
		}
	}

	if err := newRepl(session, os.Stdout).Run(ctx, os.Stdin); err != nil {
		log.Fatalf("error reading input: %v", err)
	}
}
