package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/honeynil/RentalOrderService/internal/infrastructure/observability"
	"github.com/honeynil/RentalOrderService/internal/infrastructure/payment"
	"github.com/honeynil/RentalOrderService/internal/infrastructure/redis"
	"github.com/honeynil/RentalOrderService/internal/models"
	"github.com/honeynil/RentalOrderService/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "order-service"

// OrderService is the only component that changes the status of rentals,
// transactions and sale appointments.
type OrderService interface {
	CreateRental(ctx context.Context, in CreateRentalInput) (*BookingResult, error)
	RetryPayment(ctx context.Context, rentalID int32) (*BookingResult, error)
	GetRental(ctx context.Context, rentalID int32) (*models.RentalDetails, error)
	ListRentals(ctx context.Context, renterID int32) ([]models.Rental, error)
	UpdateRentalStatus(ctx context.Context, rentalID int32, target models.RentalStatus, reason string) (*models.RentalDetails, error)

	VerifyPayment(ctx context.Context, pidx string) (*VerificationResult, error)
	ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (*ReconcileReport, error)

	CreateAppointment(ctx context.Context, in CreateAppointmentInput) (*models.SaleAppointment, error)
	GetAppointment(ctx context.Context, id int32) (*models.SaleAppointment, error)
	ListAppointments(ctx context.Context, userID int32, role models.Role) ([]models.SaleAppointment, error)
	UpdateAppointmentStatus(ctx context.Context, id int32, target models.AppointmentStatus, role models.Role, reason string) (*models.SaleAppointment, error)
}

type PaymentGateway interface {
	Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.InitiateResponse, error)
	Lookup(ctx context.Context, pidx string) (*payment.LookupResponse, error)
}

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type EventPublisher interface {
	PublishStatus(ctx context.Context, event models.StatusEvent) error
}

// Dependencies wires the engine to its stores and collaborators. Events and
// Cache are optional.
type Dependencies struct {
	Rentals      repository.RentalRepository
	Transactions repository.TransactionRepository
	Appointments repository.AppointmentRepository
	Users        repository.UserRepository
	Vehicles     repository.VehicleRepository
	Gateway      PaymentGateway
	Notifier     Notifier
	Events       EventPublisher
	Cache        redis.RedisClient
}

type Options struct {
	InitiateTimeout time.Duration
	LookupTimeout   time.Duration
	NotifyTimeout   time.Duration
	ResultTTL       time.Duration
}

func (o Options) withDefaults() Options {
	if o.InitiateTimeout <= 0 {
		o.InitiateTimeout = 10 * time.Second
	}
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = 5 * time.Second
	}
	if o.NotifyTimeout <= 0 {
		o.NotifyTimeout = 10 * time.Second
	}
	if o.ResultTTL <= 0 {
		o.ResultTTL = 24 * time.Hour
	}
	return o
}

type orderService struct {
	rentals      repository.RentalRepository
	transactions repository.TransactionRepository
	appointments repository.AppointmentRepository
	users        repository.UserRepository
	vehicles     repository.VehicleRepository
	gateway      PaymentGateway
	notifier     Notifier
	events       EventPublisher
	cache        redis.RedisClient
	opts         Options
	now          func() time.Time
}

func NewOrderService(deps Dependencies, opts Options) *orderService {
	return &orderService{
		rentals:      deps.Rentals,
		transactions: deps.Transactions,
		appointments: deps.Appointments,
		users:        deps.Users,
		vehicles:     deps.Vehicles,
		gateway:      deps.Gateway,
		notifier:     deps.Notifier,
		events:       deps.Events,
		cache:        deps.Cache,
		opts:         opts.withDefaults(),
		now:          time.Now,
	}
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name)
}

func failSpan(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

// recordTransition counts a committed transition and publishes it. Publishing
// is best-effort and detached from the request context.
func (s *orderService) recordTransition(ctx context.Context, entity string, id int32, from, to, reason string) {
	observability.StatusTransitions.WithLabelValues(entity, to).Inc()
	if s.events == nil {
		return
	}

	event := models.StatusEvent{
		EventID:  uuid.NewString(),
		Entity:   entity,
		EntityID: id,
		From:     from,
		To:       to,
		Reason:   reason,
		At:       s.now().UTC(),
	}
	if err := s.events.PublishStatus(context.WithoutCancel(ctx), event); err != nil {
		slog.Warn("failed to publish status event", "entity", entity, "id", id, "to", to, "error", err)
	}
}

// notify looks up the recipient and dispatches n. Failures are logged and
// swallowed: the transition that triggered the notification has already
// committed.
func (s *orderService) notify(ctx context.Context, recipientID int32, kind models.NotificationKind, subject, body string) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.NotifyTimeout)
	defer cancel()

	user, err := s.users.GetByID(ctx, recipientID)
	if err != nil {
		observability.Notifications.WithLabelValues(string(kind), "lookup_failed").Inc()
		slog.Warn("notification recipient lookup failed", "kind", kind, "recipient_id", recipientID, "error", err)
		return
	}

	n := models.Notification{
		Kind:          kind,
		RecipientID:   user.ID,
		RecipientName: user.FullName,
		To:            user.Email,
		Subject:       subject,
		Body:          body,
	}
	if err := s.notifier.Notify(ctx, n); err != nil {
		observability.Notifications.WithLabelValues(string(kind), "failed").Inc()
		slog.Warn("notification dispatch failed", "kind", kind, "recipient_id", recipientID, "error", err)
		return
	}
	observability.Notifications.WithLabelValues(string(kind), "dispatched").Inc()
}
