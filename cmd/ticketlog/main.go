package main // ticketlog appends paid and counter bookings from RabbitMQ to a log file

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/cinema-seat-checkout/internal/config"
	"github.com/iliyamo/cinema-seat-checkout/internal/logger"
	"github.com/iliyamo/cinema-seat-checkout/internal/queue"
)

func main() {
	config.LoadDotEnv()                                                     // read .env if present
	log := logger.New(os.Getenv("LOG_LEVEL"), os.Getenv("APP_ENV") != "prod") // structured logger

	url := config.AMQPURL() // broker URL
	if url == "" {
		log.Error("RABBITMQ_URL or AMQP_URL must be set")
		os.Exit(1) // nothing to consume
	}
	sink := queue.NewTicketLog(config.TicketLogDir())   // append-only booking log
	consumer := queue.NewConsumer(url, sink, log)      // RabbitMQ consumer

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop() // restore default signal handling

	log.Info("ticket log consumer started", "file", sink.Path())
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped", "error", err)
		os.Exit(1)
	}
}
