package notification

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeProducer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestSendPurchaseConfirmationActivity(t *testing.T) {
	valid, err := json.Marshal(PurchaseMessage{OrderID: 7, PhoneNumber: "010-1234-5678", PoolNames: []string{"Concert A", "Concert B"}})
	require.NoError(t, err)
	noPhone, err := json.Marshal(PurchaseMessage{OrderID: 7, PoolNames: []string{"Concert A"}})
	require.NoError(t, err)

	tests := []struct {
		name          string
		input         []byte
		notifierErr   error
		wantCode      string
		wantDelivered int
	}{
		{name: "delivered", input: valid, wantDelivered: 1},
		{name: "malformed input", input: []byte("{"), wantCode: "INVALID_INPUT"},
		{name: "missing phone number", input: noPhone, wantCode: "MISSING_PHONE_NUMBER"},
		{name: "delivery failure is transient", input: valid, notifierErr: stderrors.New("gateway down"), wantCode: "NOTIFICATION_SEND_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := NewMockNotifier()
			notifier.FailWith(tt.notifierErr)

			_, err := SendPurchaseConfirmationActivity(notifier)(context.Background(), tt.input)
			if tt.wantCode != "" {
				assert.True(t, errors.HasCode(err, tt.wantCode), "got %v", err)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, notifier.GetAllMessages(), tt.wantDelivered)
		})
	}
}

func TestSendPurchaseConfirmationActivity_TransientFailureIsRetryable(t *testing.T) {
	notifier := NewMockNotifier()
	notifier.FailWith(stderrors.New("gateway down"))
	input, _ := json.Marshal(PurchaseMessage{PhoneNumber: "010"})

	_, err := SendPurchaseConfirmationActivity(notifier)(context.Background(), input)
	assert.True(t, errors.IsRetryable(err))
}

func TestMockNotifier_RecordsCopies(t *testing.T) {
	notifier := NewMockNotifier()
	names := []string{"Concert A"}
	require.NoError(t, notifier.Notify(context.Background(), "010", names))
	names[0] = "changed"

	msgs := notifier.GetAllMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, &Message{PhoneNumber: "010", PoolNames: []string{"Concert A"}}, msgs[0])
}

func TestKafkaNotifier(t *testing.T) {
	producer := &fakeProducer{}
	notifier := NewKafkaNotifier(producer, "purchase-confirmations")

	require.NoError(t, notifier.Notify(context.Background(), "010-1234-5678", []string{"Concert A"}))
	require.Len(t, producer.msgs, 1)

	msg := producer.msgs[0]
	assert.Equal(t, "purchase-confirmations", msg.Topic)
	assert.Equal(t, []byte("010-1234-5678"), msg.Key)
	assert.Equal(t, []kafka.Header{{Key: "event_type", Value: []byte("purchase_confirmation")}}, msg.Headers)

	var body purchaseConfirmation
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "010-1234-5678", body.PhoneNumber)
	assert.Equal(t, []string{"Concert A"}, body.PoolNames)
	assert.False(t, body.SentAt.IsZero())
}

func TestKafkaNotifier_PublishFailure(t *testing.T) {
	boom := stderrors.New("broker unreachable")
	notifier := NewKafkaNotifier(&fakeProducer{err: boom}, "t")

	err := notifier.Notify(context.Background(), "010", []string{"Concert A"})
	assert.ErrorIs(t, err, boom)
}
