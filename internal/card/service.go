// Package card is the card mutation service.
//
// Every mutation runs in one store transaction: the affected rows are
// locked, dependencies are validated, the card row is written, positions
// of the affected lists are replanned and verified, and an activity entry is
// appended. Any failure rolls the whole operation back.
package card

import (
	"context"
	"errors"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/zulandar/boardcore/internal/apperr"
	"github.com/zulandar/boardcore/internal/cache"
	"github.com/zulandar/boardcore/internal/depgraph"
	"github.com/zulandar/boardcore/internal/position"
	"github.com/zulandar/boardcore/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/zulandar/boardcore/internal/card"

// Service creates, updates, moves and deletes cards.
type Service struct {
	store     *store.Store
	validator *depgraph.Validator
	cards     *position.Reindexer
	cache     *cache.Cards
	logger    *log.Logger
	tracer    trace.Tracer
	newID     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithCache serves GetCard through c and evicts mutated cards from it.
func WithCache(c *cache.Cards) Option {
	return func(s *Service) { s.cache = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMaxDependencyNodes bounds one dependency traversal.
func WithMaxDependencyNodes(n int) Option {
	return func(s *Service) { s.validator = depgraph.New(n) }
}

// WithTracer sets the tracer used for mutation spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// NewService returns a Service over st.
func NewService(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:     st,
		validator: depgraph.New(depgraph.DefaultMaxNodes),
		cards:     position.ForCards(),
		logger:    log.StandardLogger(),
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "card."+name, trace.WithAttributes(attrs...))
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorKind(err))
	}
	span.End()
}

func errorKind(err error) string {
	for _, kind := range []error{
		apperr.ErrMissingDependency,
		apperr.ErrNotFound,
		apperr.ErrCircularDependency,
		apperr.ErrInvalidProgress,
		apperr.ErrValidation,
		apperr.ErrInvariantViolation,
		apperr.ErrStorageUnavailable,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "error"
}
