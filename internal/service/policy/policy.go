// internal/service/policy/policy.go
package policy

import (
	"context"
	"errors"
	"strings"
	"time"

	"policy-service/internal/domain/policy"
	"policy-service/internal/metrics"
	xerrors "policy-service/internal/pkg/errors"

	"go.uber.org/zap"
)

// EventPublisher hands committed changes to the change feed.
type EventPublisher interface {
	Publish(ctx context.Context, evt *policy.Event) error
}

type PolicyService struct {
	repo      policy.Repository
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*PolicyService)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *PolicyService) {
		s.now = now
	}
}

func NewPolicyService(repo policy.Repository, publisher EventPublisher, m *metrics.Metrics, logger *zap.Logger, opts ...Option) *PolicyService {
	if m == nil {
		m = metrics.NewMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &PolicyService{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetPolicies returns every policy ordered by policy number
func (s *PolicyService) GetPolicies(ctx context.Context) (policies []policy.Policy, err error) {
	defer func() { s.metrics.ObserveOperation("list", err) }()

	policies, err = s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list policies", zap.Error(err))
		return nil, xerrors.NewWithCause(xerrors.ErrInternal, err, "Failed to load policies.")
	}

	return policies, nil
}

// GetPolicy returns a single policy
func (s *PolicyService) GetPolicy(ctx context.Context, policyNumber int64) (p *policy.Policy, err error) {
	defer func() { s.metrics.ObserveOperation("get", err) }()

	if policyNumber <= 0 {
		return nil, xerrors.New(xerrors.ErrInvalidInput, "Invalid policy number.")
	}

	p, err = s.repo.FindByNumber(ctx, policyNumber)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, xerrors.New(xerrors.ErrNotFound, "Policy %d was not found.", policyNumber)
	}
	if err != nil {
		s.logger.Error("failed to load policy", zap.Int64("policy_number", policyNumber), zap.Error(err))
		return nil, xerrors.NewWithCause(xerrors.ErrInternal, err, "Failed to load policy %d.", policyNumber)
	}

	return p, nil
}

// CreatePolicy validates req and stores it under the next free policy number
func (s *PolicyService) CreatePolicy(ctx context.Context, req *policy.CreatePolicyRequest) (p *policy.Policy, err error) {
	defer func() { s.metrics.ObserveOperation("create", err) }()

	if err := validateCreate(req); err != nil {
		return nil, err
	}

	max, ok, err := s.repo.MaxPolicyNumber(ctx)
	if err != nil {
		s.logger.Error("failed to read max policy number", zap.Error(err))
		return nil, xerrors.NewWithCause(xerrors.ErrInternal, err, "Failed to create policy.")
	}

	p = &policy.Policy{
		PolicyNumber: policy.NextPolicyNumber(max, ok),
		CustomerName: strings.TrimSpace(req.CustomerName),
		StartDate:    req.StartDate.UTC(),
		EndDate:      req.EndDate.UTC(),
	}

	if err = s.repo.Insert(ctx, p); err != nil {
		if errors.Is(err, xerrors.ErrDuplicateEntry) {
			s.logger.Warn("policy number taken by a concurrent create", zap.Int64("policy_number", p.PolicyNumber))
			return nil, xerrors.NewWithCause(xerrors.ErrConflict, err,
				"Policy %d was created by another process. Please retry.", p.PolicyNumber)
		}
		s.logger.Error("failed to create policy", zap.Error(err))
		return nil, xerrors.NewWithCause(xerrors.ErrInternal, err, "Failed to create policy.")
	}

	s.logger.Info("policy created",
		zap.Int64("policy_number", p.PolicyNumber),
		zap.String("customer_name", p.CustomerName),
	)
	s.publish(ctx, policy.EventCreated, p)

	return p, nil
}

// CancelPolicy applies the cancel transition to an active policy
func (s *PolicyService) CancelPolicy(ctx context.Context, policyNumber int64) (p *policy.Policy, err error) {
	defer func() { s.metrics.ObserveOperation("cancel", err) }()

	if policyNumber <= 0 {
		return nil, xerrors.New(xerrors.ErrInvalidInput, "Invalid policy number.")
	}

	p, err = s.repo.FindByNumber(ctx, policyNumber)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, xerrors.New(xerrors.ErrNotFound, "Policy %d was not found.", policyNumber)
	}
	if err != nil {
		s.logger.Error("failed to load policy", zap.Int64("policy_number", policyNumber), zap.Error(err))
		return nil, xerrors.NewWithCause(xerrors.ErrInternal, err, "Failed to cancel policy %d.", policyNumber)
	}

	readVersion := p.Version
	if err := p.Cancel(s.now()); err != nil {
		return nil, xerrors.NewWithCause(xerrors.ErrConflict, err, "Policy %d is already cancelled.", policyNumber)
	}

	if err = s.repo.Update(ctx, p, readVersion); err != nil {
		switch {
		case errors.Is(err, xerrors.ErrConcurrentUpdate):
			s.logger.Error("policy changed while cancelling",
				zap.Int64("policy_number", policyNumber),
				zap.Int64("read_version", readVersion),
			)
			return nil, xerrors.NewWithCause(xerrors.ErrConflict, err,
				"Policy %d was modified by another process.", policyNumber)
		case errors.Is(err, xerrors.ErrNotFound):
			return nil, xerrors.New(xerrors.ErrNotFound, "Policy %d was not found.", policyNumber)
		default:
			s.logger.Error("failed to cancel policy", zap.Int64("policy_number", policyNumber), zap.Error(err))
			return nil, xerrors.NewWithCause(xerrors.ErrInternal, err, "Failed to cancel policy %d.", policyNumber)
		}
	}

	s.logger.Info("policy cancelled", zap.Int64("policy_number", policyNumber))
	s.publish(ctx, policy.EventCancelled, p)

	return p, nil
}

// Seed inserts the demo policies when the store is empty. It reports how many were written.
func (s *PolicyService) Seed(ctx context.Context) (int, error) {
	_, ok, err := s.repo.MaxPolicyNumber(ctx)
	if err != nil {
		return 0, xerrors.Wrap(err, "failed to inspect store")
	}
	if ok {
		return 0, nil
	}

	now := s.now().UTC()
	seeds := []policy.Policy{
		{CustomerName: "Alice", StartDate: now.Add(-2 * time.Minute), EndDate: now.Add(10 * time.Minute)},
		{CustomerName: "Bob", StartDate: now.Add(-1 * time.Minute), EndDate: now.Add(5 * time.Minute)},
		{CustomerName: "Charlie", StartDate: now.Add(-6 * time.Minute), EndDate: now.Add(-1 * time.Minute)},
	}

	for i := range seeds {
		seeds[i].PolicyNumber = policy.FirstPolicyNumber + int64(i)
		if err := s.repo.Insert(ctx, &seeds[i]); err != nil {
			return i, xerrors.Wrap(err, "failed to seed policies")
		}
	}

	s.logger.Info("seeded policies", zap.Int("count", len(seeds)))
	return len(seeds), nil
}

func (s *PolicyService) publish(ctx context.Context, eventType policy.EventType, p *policy.Policy) {
	if s.publisher == nil {
		return
	}

	evt := policy.NewEvent(eventType, *p, s.now())
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.metrics.EventsPublished.WithLabelValues(string(eventType), "error").Inc()
		s.logger.Warn("failed to publish policy event",
			zap.String("event_type", string(eventType)),
			zap.Int64("policy_number", p.PolicyNumber),
			zap.Error(err),
		)
		return
	}
	s.metrics.EventsPublished.WithLabelValues(string(eventType), "ok").Inc()
}

func validateCreate(req *policy.CreatePolicyRequest) error {
	if req == nil {
		return xerrors.New(xerrors.ErrInvalidInput, "Policy details are required.")
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return xerrors.New(xerrors.ErrInvalidInput, "Customer name is a required field.")
	}
	if req.StartDate.IsZero() {
		return xerrors.New(xerrors.ErrInvalidInput, "Start date is a required field.")
	}
	if req.EndDate.IsZero() {
		return xerrors.New(xerrors.ErrInvalidInput, "End date is a required field.")
	}
	if req.EndDate.Before(req.StartDate.Time) {
		return xerrors.New(xerrors.ErrInvalidInput, "End date must not be before start date.")
	}
	return nil
}
