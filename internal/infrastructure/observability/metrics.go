package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	OrdersPlaced          prometheus.Counter
	OrdersCanceled        prometheus.Counter
	OrdersFailed          *prometheus.CounterVec
	OperationDuration     *prometheus.HistogramVec
	LockWaitDuration      prometheus.Histogram
	PoolsLocked           prometheus.Counter
	RegistrationDuration  prometheus.Histogram
	RegistrationFailures  prometheus.Counter
	NotificationsEnqueued *prometheus.CounterVec
	NotificationsSent     *prometheus.CounterVec
	ActivityExecutions    *prometheus.CounterVec
	ActivityDuration      *prometheus.HistogramVec
	ActivityErrors        *prometheus.CounterVec
}

// NewMetrics creates a new metrics collector registered on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OrdersPlaced: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticket_orders_placed_total",
			Help: "Total number of orders placed",
		}),
		OrdersCanceled: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticket_orders_canceled_total",
			Help: "Total number of orders canceled",
		}),
		OrdersFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_orders_failed_total",
			Help: "Total number of rejected order operations by error code",
		}, []string{"operation", "code"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ticket_order_operation_duration_seconds",
			Help:    "Order operation duration in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 2, 5, 10},
		}, []string{"operation"}),
		LockWaitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ticket_pool_lock_wait_seconds",
			Help:    "Time spent waiting for an inventory pool lock",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),
		PoolsLocked: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticket_pool_locks_total",
			Help: "Total number of inventory pool locks granted",
		}),
		RegistrationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ticket_registration_duration_seconds",
			Help:    "Participant registration call duration in seconds",
			Buckets: []float64{.1, .5, 1, 2, 5, 10},
		}),
		RegistrationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticket_registration_failures_total",
			Help: "Total number of failed participant registrations",
		}),
		NotificationsEnqueued: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_notifications_enqueued_total",
			Help: "Purchase notifications handed to the task hub by result",
		}, []string{"result"}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_notifications_sent_total",
			Help: "Purchase notification deliveries by result",
		}, []string{"result"}),
		ActivityExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_executions_total",
			Help: "Total number of activity executions",
		}, []string{"activity"}),
		ActivityDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "activity_duration_seconds",
			Help:    "Activity execution duration in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10},
		}, []string{"activity"}),
		ActivityErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_errors_total",
			Help: "Total number of activity errors",
		}, []string{"activity"}),
	}
}

// RecordOrderPlaced records a committed placeOrder
func (m *Metrics) RecordOrderPlaced(duration time.Duration) {
	m.OrdersPlaced.Inc()
	m.OperationDuration.WithLabelValues("place").Observe(duration.Seconds())
}

// RecordOrderCanceled records a committed cancelOrder
func (m *Metrics) RecordOrderCanceled(duration time.Duration) {
	m.OrdersCanceled.Inc()
	m.OperationDuration.WithLabelValues("cancel").Observe(duration.Seconds())
}

// RecordOrderFailed records a rolled back order operation
func (m *Metrics) RecordOrderFailed(operation, code string, duration time.Duration) {
	if code == "" {
		code = "UNKNOWN"
	}
	m.OrdersFailed.WithLabelValues(operation, code).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordLockWait records how long a pool lock took to be granted
func (m *Metrics) RecordLockWait(duration time.Duration) {
	m.PoolsLocked.Inc()
	m.LockWaitDuration.Observe(duration.Seconds())
}

// RecordRegistration records a participant registration call
func (m *Metrics) RecordRegistration(duration time.Duration, err error) {
	m.RegistrationDuration.Observe(duration.Seconds())
	if err != nil {
		m.RegistrationFailures.Inc()
	}
}

// RecordNotificationEnqueued records a dispatch attempt
func (m *Metrics) RecordNotificationEnqueued(err error) {
	m.NotificationsEnqueued.WithLabelValues(result(err)).Inc()
}

// RecordNotificationSent records a delivery attempt
func (m *Metrics) RecordNotificationSent(err error) {
	m.NotificationsSent.WithLabelValues(result(err)).Inc()
}

// RecordActivityExecution records activity execution
func (m *Metrics) RecordActivityExecution(activity string, duration time.Duration, err error) {
	m.ActivityExecutions.WithLabelValues(activity).Inc()
	m.ActivityDuration.WithLabelValues(activity).Observe(duration.Seconds())
	if err != nil {
		m.ActivityErrors.WithLabelValues(activity).Inc()
	}
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
