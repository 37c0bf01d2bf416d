package config

import "os"

// AMQPURL returns the broker URL used by the booking event publisher and
// the ticket log consumer.  RABBITMQ_URL wins over AMQP_URL; an empty
// result disables publishing.
func AMQPURL() string {
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		return url // preferred name
	}
	return os.Getenv("AMQP_URL") // fallback, may be empty
}

// TicketLogDir is where the ticket log consumer appends booking lines.
func TicketLogDir() string {
	return getenv("TICKET_LOG_DIR", "logs")
}
