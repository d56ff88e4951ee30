package registration

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/infrastructure/config"
	"github.com/Youmanvi/ticketreserve/internal/infrastructure/observability"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func testConfig() config.RegistrationConfig {
	return config.RegistrationConfig{
		Timeout:                 200 * time.Millisecond,
		RetryMaxAttempts:        3,
		CircuitBreakerThreshold: 0.5,
		CircuitBreakerTimeout:   time.Minute,
	}
}

func newGuarded(client Registrar) (*GuardedRegistrar, *observability.Metrics) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return NewGuardedRegistrar(client, observability.NewNopLogger(), metrics, testConfig()), metrics
}

var input = RegisterParticipantInput{PoolIDs: []int64{1, 2}, MemberID: 7, PoolNames: []string{"A", "B"}}

func TestRegisterParticipantActivity_Input(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"malformed json", []byte(`{"poolIds":`)},
		{"no pools", []byte(`{"memberId":1,"poolIds":[]}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewMockRegistrar(0, 0)
			_, err := RegisterParticipantActivity(client)(context.Background(), tt.input)

			var customErr *errors.CustomError
			require.ErrorAs(t, err, &customErr)
			assert.Equal(t, "INVALID_INPUT", customErr.Code)
			assert.True(t, customErr.IsPermanent())
			assert.Empty(t, client.Calls())
		})
	}
}

func TestGuardedRegistrar_Success(t *testing.T) {
	client := NewMockRegistrar(0, 0)
	guarded, metrics := newGuarded(client)

	out, err := guarded.Register(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.NotEmpty(t, out.ExternalID)

	require.Len(t, client.Calls(), 1)
	assert.Equal(t, input, client.Calls()[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActivityExecutions.WithLabelValues(ActivityName)))
}

func TestGuardedRegistrar_RejectionIsOutput(t *testing.T) {
	client := NewMockRegistrar(0, 0)
	client.Reject("member banned")
	guarded, _ := newGuarded(client)

	out, err := guarded.Register(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "member banned", out.ErrorMessage)
	assert.Len(t, client.Calls(), 1, "a rejection is not retried")
}

func TestGuardedRegistrar_RetriesTransientFailures(t *testing.T) {
	client := NewMockRegistrar(0, 0)
	client.FailWith(status.Error(codes.Unavailable, "event system down"))
	guarded, _ := newGuarded(client)

	_, err := guarded.Register(context.Background(), input)
	assert.True(t, errors.HasCode(err, "GRPC_Unavailable"), "got %v", err)
	assert.Len(t, client.Calls(), 3)
}

func TestGuardedRegistrar_PermanentFailureIsNotRetried(t *testing.T) {
	client := NewMockRegistrar(0, 0)
	client.FailWith(status.Error(codes.InvalidArgument, "unknown member"))
	guarded, _ := newGuarded(client)

	_, err := guarded.Register(context.Background(), input)
	assert.True(t, errors.HasCode(err, "GRPC_InvalidArgument"), "got %v", err)
	assert.Len(t, client.Calls(), 1)
}

func TestGuardedRegistrar_TimesOut(t *testing.T) {
	client := NewMockRegistrar(time.Second, time.Second)
	guarded, _ := newGuarded(client)

	start := time.Now()
	_, err := guarded.Register(context.Background(), input)

	var customErr *errors.CustomError
	require.ErrorAs(t, err, &customErr)
	assert.True(t, customErr.IsTimeout())
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestGuardedRegistrar_BreakerOpens(t *testing.T) {
	client := NewMockRegistrar(0, 0)
	client.FailWith(status.Error(codes.PermissionDenied, "denied"))
	guarded, _ := newGuarded(client)

	for i := 0; i < 3; i++ {
		_, err := guarded.Register(context.Background(), input)
		require.Error(t, err)
	}

	_, err := guarded.Register(context.Background(), input)
	assert.True(t, errors.HasCode(err, "CIRCUIT_BREAKER_OPEN"), "got %v", err)
	assert.Len(t, client.Calls(), 3)
}

func TestMockRegistrar_HonorsContext(t *testing.T) {
	client := NewMockRegistrar(time.Second, 2*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Register(ctx, input)
	assert.True(t, stderrors.Is(err, context.Canceled))
}
