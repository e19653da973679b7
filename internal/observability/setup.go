package observability

import (
	"context"

	"github.com/honeynil/RentalOrderService/internal/config"
	"github.com/honeynil/RentalOrderService/internal/infrastructure/observability"
)

// Setup initialises logs, metrics and traces for the process.
func Setup(ctx context.Context, serviceName string, cfg *config.Config) func(context.Context) error {
	observability.InitLogger(cfg.LogLevel)
	observability.InitMetrics()
	return observability.InitTracing(ctx, serviceName, cfg.OTLPEndpoint)
}
