// Package ordering places and cancels orders. It owns the transaction
// boundary: stock reservation, the order aggregate and participant
// registration commit or roll back together, and the purchase notification is
// handed off only after commit.
package ordering

import (
	"context"
	"fmt"
	"time"

	"github.com/Youmanvi/ticketreserve/internal/activities/notification"
	"github.com/Youmanvi/ticketreserve/internal/activities/registration"
	"github.com/Youmanvi/ticketreserve/internal/domain"
	"github.com/Youmanvi/ticketreserve/internal/infrastructure/observability"
	"github.com/Youmanvi/ticketreserve/internal/pkg/errors"
	"github.com/Youmanvi/ticketreserve/internal/reservation"
	"github.com/Youmanvi/ticketreserve/internal/store"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	opPlace  = "place"
	opCancel = "cancel"
)

// Dispatcher accepts purchase notifications after commit. It must not fail
// the caller.
type Dispatcher interface {
	DispatchPurchase(ctx context.Context, msg notification.PurchaseMessage)
}

type Deps struct {
	Store       store.Store
	Coordinator *reservation.Coordinator
	Registrar   registration.Registrar
	Dispatcher  Dispatcher
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	Now         func() time.Time
}

type Service struct {
	store       store.Store
	coordinator *reservation.Coordinator
	registrar   registration.Registrar
	dispatcher  Dispatcher
	logger      *observability.Logger
	metrics     *observability.Metrics
	tracer      trace.Tracer
	now         func() time.Time
}

func NewService(deps Deps) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:       deps.Store,
		coordinator: deps.Coordinator,
		registrar:   deps.Registrar,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		tracer:      observability.GetTracer("ordering"),
		now:         now,
	}
}

// PlaceOrder buys ticketIDs for memberID in one unit of work and returns the
// committed order.
func (s *Service) PlaceOrder(ctx context.Context, memberID int64, ticketIDs []int64) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "ordering.PlaceOrder", trace.WithAttributes(
		attribute.Int64("member.id", memberID),
		attribute.Int("tickets.count", len(ticketIDs)),
	))
	defer span.End()

	start := time.Now()
	logger := s.logger.WithTraceID(ctx, observability.TraceIDFromContext(ctx)).WithMemberID(memberID)

	var (
		order     *domain.Order
		member    domain.Member
		poolIDs   []int64
		poolNames []string
	)
	if len(ticketIDs) == 0 {
		err := errors.NewValidationError("order must contain at least one ticket")
		s.fail(ctx, span, logger, opPlace, 0, start, err)
		return nil, err
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		member, err = tx.GetMember(ctx, memberID)
		if err != nil {
			return fmt.Errorf("load member: %w", err)
		}

		tickets, err := tx.FindTickets(ctx, ticketIDs)
		if err != nil {
			return fmt.Errorf("load tickets: %w", err)
		}
		if len(tickets) != len(ticketIDs) {
			return errors.NewValidationError("requested %d tickets, found %d distinct existing ones", len(ticketIDs), len(tickets))
		}

		poolIDs, err = s.coordinator.ReserveForPurchase(ctx, tx, tickets)
		if err != nil {
			return fmt.Errorf("reserve stock: %w", err)
		}

		order, err = domain.CreateOrder(member, tickets, s.now().UTC())
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		names := lo.Associate(tickets, func(t *domain.Ticket) (int64, string) {
			return t.PoolID, t.Pool().Name
		})
		poolNames = lo.Map(poolIDs, func(id int64, _ int) string { return names[id] })

		if err := s.register(ctx, member.ID, poolIDs, poolNames); err != nil {
			return err
		}

		if err := tx.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
	if err != nil {
		s.fail(ctx, span, logger, opPlace, 0, start, err)
		return nil, err
	}

	duration := time.Since(start)
	s.metrics.RecordOrderPlaced(duration)
	span.SetAttributes(attribute.Int64("order.id", order.ID))

	logger.WithOrderID(order.ID).Logger.Info().
		Ints64("pool_ids", poolIDs).
		Str("total_amount", order.TotalAmount.String()).
		Dur("duration_ms", duration).
		Msg("order placed")
	s.audit(ctx, observability.LogLevelInfo, "order placed", opPlace, order.ID, duration, nil)

	s.dispatcher.DispatchPurchase(ctx, notification.PurchaseMessage{
		OrderID:     order.ID,
		MemberID:    member.ID,
		PhoneNumber: member.PhoneNumber,
		PoolIDs:     poolIDs,
		PoolNames:   poolNames,
	})

	return order, nil
}

// CancelOrder cancels an ACTIVE order, returning its tickets and stock.
func (s *Service) CancelOrder(ctx context.Context, orderID int64) error {
	ctx, span := s.tracer.Start(ctx, "ordering.CancelOrder", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
	))
	defer span.End()

	start := time.Now()
	logger := s.logger.WithTraceID(ctx, observability.TraceIDFromContext(ctx)).WithOrderID(orderID)

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}

		if err := s.coordinator.ReserveForCancellation(ctx, tx, order); err != nil {
			return fmt.Errorf("lock pools: %w", err)
		}

		return order.Cancel()
	})
	if err != nil {
		s.fail(ctx, span, logger, opCancel, orderID, start, err)
		return err
	}

	duration := time.Since(start)
	s.metrics.RecordOrderCanceled(duration)
	logger.Logger.Info().Dur("duration_ms", duration).Msg("order canceled")
	s.audit(ctx, observability.LogLevelInfo, "order canceled", opCancel, orderID, duration, nil)

	return nil
}

// GetOrder returns a committed order with its lines.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return s.store.GetOrder(ctx, orderID)
}

// register calls the external registration system. A rejection and a
// transport failure both fail the order.
func (s *Service) register(ctx context.Context, memberID int64, poolIDs []int64, poolNames []string) error {
	start := time.Now()
	out, err := s.registrar.Register(ctx, registration.RegisterParticipantInput{
		PoolIDs:   poolIDs,
		MemberID:  memberID,
		PoolNames: poolNames,
	})
	if err == nil && !out.Success {
		err = fmt.Errorf("registration rejected: %s", out.ErrorMessage)
	}
	s.metrics.RecordRegistration(time.Since(start), err)

	if err != nil {
		return errors.NewExternalServiceError("participant registration failed", err)
	}
	return nil
}

func (s *Service) fail(ctx context.Context, span trace.Span, logger *observability.Logger, op string, orderID int64, start time.Time, err error) {
	duration := time.Since(start)
	code := errors.CodeOf(err)

	s.metrics.RecordOrderFailed(op, code, duration)
	span.RecordError(err)
	span.SetStatus(codes.Error, code)

	event := logger.WithError(err).Logger.Warn()
	if errors.IsRetryable(err) {
		event = event.Bool("retryable", true)
	}
	event.Str("code", code).Dur("duration_ms", duration).Msgf("%s order rejected", op)

	s.audit(ctx, observability.LogLevelWarn, op+" order rejected", op, orderID, duration, err)
}

// audit persists an order outcome through the logger's sink, if any.
func (s *Service) audit(ctx context.Context, level observability.LogLevel, msg, op string, orderID int64, duration time.Duration, err error) {
	record := observability.NewLogRecord(level, observability.TraceIDFromContext(ctx), msg).
		WithActivity("ordering:" + op).
		WithDuration(duration)
	if orderID != 0 {
		record = record.WithOrderID(orderID)
	}
	if err != nil {
		record = record.WithErrorCode(errors.CodeOf(err)).WithError(err.Error())
	}
	s.logger.WriteLogRecord(record)
}
