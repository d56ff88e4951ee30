package notification

import (
	"context"
	"encoding/json"

	"github.com/Youmanvi/ticketreserve/internal/middleware"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
)

// ActivityName is the task hub name of the purchase confirmation activity.
const ActivityName = "notification:purchase_confirmation"

// PurchaseMessage is captured from a committed order and carried through the
// task hub to the notifier.
type PurchaseMessage struct {
	OrderID     int64    `json:"orderId"`
	MemberID    int64    `json:"memberId"`
	PhoneNumber string   `json:"phoneNumber"`
	PoolIDs     []int64  `json:"poolIds"`
	PoolNames   []string `json:"poolNames"`
}

// Notifier delivers a purchase confirmation to a member
type Notifier interface {
	Notify(ctx context.Context, phoneNumber string, poolNames []string) error
}

// SendPurchaseConfirmationActivity delivers one PurchaseMessage. Delivery
// failures are transient; malformed input is permanent.
func SendPurchaseConfirmationActivity(notifier Notifier) middleware.ActivityFunc {
	return func(ctx context.Context, input []byte) ([]byte, error) {
		var msg PurchaseMessage
		if err := json.Unmarshal(input, &msg); err != nil {
			return nil, errors.NewPermanentError("INVALID_INPUT", "failed to unmarshal purchase message", err)
		}

		if msg.PhoneNumber == "" {
			return nil, errors.NewPermanentError("MISSING_PHONE_NUMBER", "member phone number is required", nil)
		}

		if err := notifier.Notify(ctx, msg.PhoneNumber, msg.PoolNames); err != nil {
			if errors.CodeOf(err) != "" {
				return nil, err
			}
			return nil, errors.NewTransientError("NOTIFICATION_SEND_FAILED", "failed to send purchase confirmation", err)
		}

		return input, nil
	}
}
