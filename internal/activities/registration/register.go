package registration

import (
	"context"
	"encoding/json"

	"github.com/Youmanvi/ticketreserve/internal/middleware"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
)

// ActivityName identifies the registration call in logs and metrics.
const ActivityName = "registration:register_participant"

// RegisterParticipantInput is the input for registering a member with the
// external event system
type RegisterParticipantInput struct {
	PoolIDs   []int64  `json:"poolIds"`
	MemberID  int64    `json:"memberId"`
	PoolNames []string `json:"poolNames"`
}

// RegisterParticipantOutput is the collaborator's answer
type RegisterParticipantOutput struct {
	Success      bool   `json:"success"`
	ExternalID   string `json:"externalId,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Registrar is the external participant registration system
type Registrar interface {
	Register(ctx context.Context, input RegisterParticipantInput) (RegisterParticipantOutput, error)
}

// RegisterParticipantActivity calls the registrar. A rejection is returned as
// output; only transport failures are errors.
func RegisterParticipantActivity(client Registrar) middleware.ActivityFunc {
	return func(ctx context.Context, input []byte) ([]byte, error) {
		var inp RegisterParticipantInput
		if err := json.Unmarshal(input, &inp); err != nil {
			return nil, errors.NewPermanentError("INVALID_INPUT", "failed to unmarshal registration input", err)
		}
		if len(inp.PoolIDs) == 0 {
			return nil, errors.NewPermanentError("INVALID_INPUT", "registration without pools", nil)
		}

		output, err := client.Register(ctx, inp)
		if err != nil {
			return nil, err
		}

		result, err := json.Marshal(output)
		if err != nil {
			return nil, errors.NewPermanentError("SERIALIZATION_ERROR", "failed to marshal registration output", err)
		}

		return result, nil
	}
}
