package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"selfie-backend/cmd"
	"selfie-backend/internal/database"
	"selfie-backend/internal/messaging"
	"selfie-backend/internal/trainer"

	"github.com/caarlos0/env/v11"
)

type WorkerConfig struct {
	DatabaseURL string `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL string `env:"RABBITMQ_URL,notEmpty,required"`

	TrainingAPIURL   string `env:"TRAINING_API_URL" envDefault:"https://api.replicate.com"`
	TrainingAPIToken string `env:"TRAINING_API_TOKEN,notEmpty,required"`
	ModelOwner       string `env:"MODEL_OWNER,notEmpty,required"`
}

func main() {
	log.Println("Starting completion worker...")

	cmd.LoadEnvFile()

	var cfg WorkerConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	trainerClient := trainer.NewClient(trainer.Config{
		BaseURL:    cfg.TrainingAPIURL,
		APIToken:   cfg.TrainingAPIToken,
		ModelOwner: cfg.ModelOwner,
	})

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer receiver.Close()

	checker := trainer.NewStatusChecker(db, trainerClient)
	worker := messaging.NewCompletionWorker(receiver, checker)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Println("Completion worker ready.")
	worker.Run(ctx)

	log.Println("Worker stopped.")
}
