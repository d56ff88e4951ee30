package registration

import (
	"context"
	"encoding/json"

	"github.com/Youmanvi/ticketreserve/internal/infrastructure/config"
	"github.com/Youmanvi/ticketreserve/internal/infrastructure/observability"
	"github.com/Youmanvi/ticketreserve/internal/middleware"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
)

// GuardedRegistrar runs a Registrar through the activity middleware chain:
// logging, metrics, timeout, circuit breaker, gRPC classification and retry.
type GuardedRegistrar struct {
	call middleware.ActivityFunc
}

var _ Registrar = (*GuardedRegistrar)(nil)

func NewGuardedRegistrar(client Registrar, logger *observability.Logger, metrics *observability.Metrics, cfg config.RegistrationConfig) *GuardedRegistrar {
	call := middleware.ApplyMiddleware(
		RegisterParticipantActivity(client),
		middleware.WithLogging(logger, ActivityName),
		middleware.WithMetrics(metrics, ActivityName),
		middleware.WithTimeout(cfg.Timeout),
		middleware.WithCircuitBreaker(logger, ActivityName, cfg.CircuitBreakerThreshold, cfg.CircuitBreakerTimeout),
		middleware.WithGRPCErrorHandling(),
		middleware.WithRetry(logger, middleware.DefaultRetryPolicy(cfg.RetryMaxAttempts)),
	)
	return &GuardedRegistrar{call: call}
}

func (g *GuardedRegistrar) Register(ctx context.Context, input RegisterParticipantInput) (RegisterParticipantOutput, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return RegisterParticipantOutput{}, errors.NewPermanentError("SERIALIZATION_ERROR", "failed to marshal registration input", err)
	}

	raw, err := g.call(ctx, payload)
	if err != nil {
		return RegisterParticipantOutput{}, err
	}

	var out RegisterParticipantOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return RegisterParticipantOutput{}, errors.NewPermanentError("INVALID_OUTPUT", "failed to unmarshal registration output", err)
	}
	return out, nil
}
