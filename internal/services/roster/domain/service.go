// Package domain exposes the roster operations collaborators call: adding
// and claiming reminders, and listing members and groups.
package domain

import (
	"context"
	"errors"
	"iter"
	"time"

	apperrors "github.com/louisbranch/roster/internal/platform/errors"
	"github.com/louisbranch/roster/internal/platform/timeouts"
	"github.com/louisbranch/roster/internal/services/roster/storage"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/roster/internal/services/roster/domain"

var (
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("roster store is not configured")
	// ErrMessageIDRequired indicates a reminder without a message id.
	ErrMessageIDRequired = apperrors.New(apperrors.CodeInvalidArgument, "reminder message id is required")
	// ErrSystemRequired indicates a reminder or list without a system.
	ErrSystemRequired = apperrors.New(apperrors.CodeInvalidArgument, "system id is required")
	// ErrUnknownEntityKind indicates QueryEntities was asked for an unknown kind.
	ErrUnknownEntityKind = apperrors.New(apperrors.CodeInvalidArgument, "unknown entity kind")
)

// Store is the persistence boundary the service needs.
type Store interface {
	storage.ReminderStore
	storage.ListStore
}

// Service runs roster operations against a store.
type Service struct {
	store   Store
	logger  zerolog.Logger
	tracer  trace.Tracer
	timeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTimeout overrides the per-call storage timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// NewService builds a service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  zerolog.Nop(),
		tracer:  otel.Tracer(tracerName),
		timeout: timeouts.StorageOperation,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddReminder stores a reminder for later claiming.
func (s *Service) AddReminder(ctx context.Context, reminder storage.Reminder) (err error) {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	if reminder.Mid == 0 {
		return ErrMessageIDRequired
	}
	if reminder.System == 0 {
		return ErrSystemRequired
	}
	if err := reminder.Validate(); err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "roster.AddReminder", trace.WithAttributes(
		attribute.Int64("roster.system", int64(reminder.System)),
		attribute.Bool("roster.targeted", reminder.Member != nil),
	))
	defer func() { endSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.AddReminder(ctx, reminder); err != nil {
		s.logger.Warn().Err(err).Uint64("mid", reminder.Mid).Msg("add reminder failed")
		return err
	}
	return nil
}

// ClaimReminders claims the reminders addressed to scope. Every unseen
// reminder is returned to exactly one caller, newest first.
func (s *Service) ClaimReminders(ctx context.Context, scope storage.ClaimScope, includeSeen, includeSystemWide bool) (claimed []storage.Reminder, err error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "roster.ClaimReminders", trace.WithAttributes(
		attribute.String("roster.scope", scope.Kind.String()),
		attribute.Int64("roster.receiver", scope.ID),
		attribute.Bool("roster.include_seen", includeSeen),
		attribute.Bool("roster.include_system_wide", includeSystemWide),
	))
	defer func() {
		span.SetAttributes(attribute.Int("roster.claimed", len(claimed)))
		endSpan(span, err)
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	claimed, err = s.store.ClaimPending(ctx, scope, storage.ClaimOptions{
		IncludeSeen:       includeSeen,
		IncludeSystemWide: includeSystemWide,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("scope", scope.Kind.String()).Int64("receiver", scope.ID).Msg("claim reminders failed")
		return nil, err
	}
	return claimed, nil
}

// QueryMembers lists a system's members under opts.
//
// The sequence is single use. The storage timeout runs from the call and
// restarts when iteration starts. A sequence that is never iterated is
// released when the timeout fires.
func (s *Service) QueryMembers(ctx context.Context, system storage.SystemID, opts storage.ListQueryOptions) (iter.Seq2[storage.ListedMember, error], error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	return startList(s, ctx, "roster.QueryMembers", system, opts, s.store.QueryMemberList)
}

// QueryGroups lists a system's groups under opts. Same rules as QueryMembers.
func (s *Service) QueryGroups(ctx context.Context, system storage.SystemID, opts storage.ListQueryOptions) (iter.Seq2[storage.ListedGroup, error], error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	return startList(s, ctx, "roster.QueryGroups", system, opts, s.store.QueryGroupList)
}

func startList[T any](
	s *Service,
	ctx context.Context,
	name string,
	system storage.SystemID,
	opts storage.ListQueryOptions,
	open func(context.Context, storage.SystemID, storage.ListQueryOptions) (iter.Seq2[T, error], error),
) (iter.Seq2[T, error], error) {
	if system == 0 && opts.GroupFilter == nil {
		return nil, ErrSystemRequired
	}
	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.Int64("roster.system", int64(system)),
		attribute.String("roster.lookup", opts.Context.String()),
		attribute.Bool("roster.search", opts.Search != ""),
		attribute.Bool("roster.search_description", opts.SearchDescription),
	))
	callCtx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(s.timeout, cancel)
	seq, err := open(callCtx, system, opts)
	endSpan(span, err)
	if err != nil {
		timer.Stop()
		cancel()
		return nil, err
	}

	return func(yield func(T, error) bool) {
		timer.Reset(s.timeout)
		defer func() {
			timer.Stop()
			cancel()
		}()
		for value, err := range seq {
			if err != nil {
				s.logger.Warn().Err(err).Str("op", name).Int64("system", int64(system)).Msg("list query failed")
			}
			if !yield(value, err) {
				return
			}
		}
	}, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
