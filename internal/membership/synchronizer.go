package membership

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"membersync/internal/constants"
	"membersync/internal/container"
	"membersync/internal/logger"
	"membersync/pkg/errors"
	"membersync/pkg/logging"
	"membersync/pkg/metrics"
	"membersync/pkg/models"
	"membersync/pkg/rules"
	"membersync/pkg/tracing"
)

// State is the phase a container refresh is in.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateEvaluating State = "evaluating"
	StateDiffing    State = "diffing"
	StatePersisting State = "persisting"
	StateFailed     State = "failed"
)

// Result describes one container refresh. State is StateIdle on success and
// StateFailed otherwise; FailedIn then names the phase that failed.
type Result struct {
	ContainerID string         `json:"container_id"`
	StoreID     string         `json:"store_id"`
	Kind        container.Kind `json:"kind"`
	State       State          `json:"state"`
	FailedIn    State          `json:"failed_in,omitempty"`
	Skipped     bool           `json:"skipped,omitempty"`
	Candidates  int            `json:"candidates"`
	MemberCount int            `json:"member_count"`
	Added       int            `json:"added"`
	Removed     int            `json:"removed"`
	Duration    time.Duration  `json:"duration_ns"`
}

type Failure struct {
	ContainerID string `json:"container_id"`
	Error       string `json:"error"`
	Err         error  `json:"-"`
}

// Report summarizes a store-wide refresh of one container kind.
type Report struct {
	StoreID  string         `json:"store_id"`
	Kind     container.Kind `json:"kind"`
	Results  []Result       `json:"results"`
	Failures []Failure      `json:"failures"`
}

func (r Report) Failed() bool {
	return len(r.Failures) > 0
}

// Preview is the outcome of evaluating a draft rule set without persisting it.
type Preview struct {
	StoreID    string   `json:"store_id"`
	Kind       string   `json:"kind"`
	Candidates int      `json:"candidates"`
	MemberIDs  []string `json:"member_ids"`
}

type options struct {
	notifier Notifier
	locker   Locker
	lockTTL  time.Duration
}

type Option func(*options)

// WithNotifier sets the notifier used after every successful refresh.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// WithLocker serializes RefreshAll per store and kind.
func WithLocker(l Locker, ttl time.Duration) Option {
	return func(o *options) {
		o.locker = l
		o.lockTTL = ttl
	}
}

// Synchronizer keeps the materialized membership of automated containers of
// one kind in step with the rule engine.
type Synchronizer[E rules.Entity] struct {
	options
	kind       container.Kind
	engine     *rules.Engine[E]
	candidates CandidateSource[E]
	members    MembershipStore
	containers ContainerStore
	logger     logger.Logger
}

func NewSynchronizer[E rules.Entity](
	kind container.Kind,
	engine *rules.Engine[E],
	candidates CandidateSource[E],
	members MembershipStore,
	containers ContainerStore,
	log logger.Logger,
	opts ...Option,
) *Synchronizer[E] {
	o := options{
		notifier: nopNotifier{},
		lockTTL:  time.Duration(constants.DefaultLockTTLSeconds) * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Synchronizer[E]{
		options:    o,
		kind:       kind,
		engine:     engine,
		candidates: candidates,
		members:    members,
		containers: containers,
		logger:     log,
	}
}

func (s *Synchronizer[E]) Kind() container.Kind {
	return s.kind
}

// RefreshOne recomputes and replaces the membership of c. Manual containers
// are skipped without touching any collaborator. A data-access failure
// leaves the previous membership in place and is returned wrapped in
// errors.ErrDataAccess.
func (s *Synchronizer[E]) RefreshOne(ctx context.Context, c container.Container) (Result, error) {
	result := Result{
		ContainerID: c.ID,
		StoreID:     c.StoreID,
		Kind:        c.Kind,
		State:       StateIdle,
	}

	if !c.Automated() {
		result.Skipped = true
		return result, nil
	}

	if c.Kind != s.kind {
		return result, errors.ErrValidation.WithDetail("message",
			fmt.Sprintf("container %s is a %s, synchronizer handles %s", c.ID, c.Kind, s.kind))
	}

	ctx = logging.WithStoreID(ctx, c.StoreID)
	ctx = logging.WithContainerID(ctx, c.ID)
	ctx, span := tracing.StartSpan(ctx, "membership.refresh_one",
		attribute.String("store_id", c.StoreID),
		attribute.String("container_id", c.ID),
		attribute.String("kind", string(c.Kind)),
	)

	start := time.Now()
	err := s.refresh(ctx, c, &result)
	result.Duration = time.Since(start)
	tracing.EndSpan(span, err)

	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.IncMembershipRefresh(string(s.kind), status)
	metrics.ObserveMembershipRefreshDuration(string(s.kind), status, result.Duration)

	if err != nil {
		s.logger.ErrorwCtx(ctx, "Membership refresh failed",
			"phase", result.FailedIn,
			"error", err,
		)
		return result, err
	}

	s.logger.InfowCtx(ctx, "Membership refreshed",
		"kind", s.kind,
		"candidates", result.Candidates,
		"member_count", result.MemberCount,
		"added", result.Added,
		"removed", result.Removed,
		"duration_ms", result.Duration.Milliseconds(),
	)

	s.notifier.NotifyMembershipRefreshed(ctx, models.MembershipRefreshedEvent{
		ContainerID: c.ID,
		StoreID:     c.StoreID,
		Kind:        string(c.Kind),
		MemberCount: result.MemberCount,
		Added:       result.Added,
		Removed:     result.Removed,
	})

	return result, nil
}

func (s *Synchronizer[E]) refresh(ctx context.Context, c container.Container, result *Result) error {
	result.State = StateLoading
	candidates, err := s.load(ctx, c.StoreID)
	if err != nil {
		return s.fail(result, err)
	}
	result.Candidates = len(candidates)

	result.State = StateEvaluating
	matching := distinct(s.engine.SelectMatching(candidates, *c.RuleSet))

	result.State = StateDiffing
	current, err := s.members.ListMembers(ctx, c.ID)
	if err != nil {
		return s.fail(result, err)
	}
	result.Added, result.Removed = diff(current, matching)

	result.State = StatePersisting
	if err := s.members.ReplaceMembers(ctx, c.ID, matching); err != nil {
		return s.fail(result, err)
	}

	result.State = StateIdle
	result.MemberCount = len(matching)

	metrics.ObserveMembershipMembers(string(s.kind), result.MemberCount)
	metrics.AddMembershipChanges(string(s.kind), result.Added, result.Removed)
	return nil
}

func (s *Synchronizer[E]) fail(result *Result, err error) error {
	result.FailedIn = result.State
	result.State = StateFailed
	return errors.Wrap(err, errors.ErrDataAccess).
		WithDetail("container_id", result.ContainerID).
		WithDetail("phase", string(result.FailedIn))
}

// load fetches the store's candidates and drops any that belong to another
// store, whatever the source returned.
func (s *Synchronizer[E]) load(ctx context.Context, storeID string) ([]E, error) {
	candidates, err := s.candidates.ListEntities(ctx, storeID)
	if err != nil {
		return nil, err
	}

	scoped := candidates[:0:0]
	leaked := 0
	for _, candidate := range candidates {
		if candidate.EntityStoreID() != storeID {
			leaked++
			continue
		}
		scoped = append(scoped, candidate)
	}

	if leaked > 0 {
		metrics.AddTenantViolations(string(s.kind), leaked)
		s.logger.ErrorwCtx(ctx, "Candidate source returned entities of another store, discarded",
			"discarded", leaked,
		)
	}
	metrics.ObserveMembershipCandidates(string(s.kind), len(scoped))
	return scoped, nil
}

// RefreshAll refreshes every automated container of the store one at a time.
// Per-container failures are collected in the report; the returned error is
// reserved for the lock and for listing the containers.
func (s *Synchronizer[E]) RefreshAll(ctx context.Context, storeID string) (Report, error) {
	report := Report{
		StoreID:  storeID,
		Kind:     s.kind,
		Results:  make([]Result, 0),
		Failures: make([]Failure, 0),
	}

	ctx = logging.WithStoreID(ctx, storeID)

	if s.locker != nil {
		unlock, err := s.locker.Acquire(ctx, lockKey(storeID, s.kind), s.lockTTL)
		if stderrors.Is(err, ErrLockHeld) {
			metrics.IncRefreshLockContention(string(s.kind))
			return report, errors.ErrRefreshInProgress.
				WithDetail("store_id", storeID).
				WithDetail("kind", string(s.kind))
		}
		if err != nil {
			return report, errors.Wrap(err, errors.ErrDataAccess).WithDetail("store_id", storeID)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				s.logger.WarnwCtx(ctx, "Failed to release refresh lock", "error", err)
			}
		}()
	}

	ctx, span := tracing.StartSpan(ctx, "membership.refresh_all",
		attribute.String("store_id", storeID),
		attribute.String("kind", string(s.kind)),
	)
	defer span.End()

	start := time.Now()
	containers, err := s.containers.ListAutomatedContainers(ctx, storeID, s.kind)
	if err != nil {
		span.RecordError(err)
		return report, errors.Wrap(err, errors.ErrDataAccess).WithDetail("store_id", storeID)
	}

	for _, c := range containers {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		result, err := s.RefreshOne(ctx, c)
		report.Results = append(report.Results, result)
		if err != nil {
			report.Failures = append(report.Failures, Failure{
				ContainerID: c.ID,
				Error:       err.Error(),
				Err:         err,
			})
		}
	}

	metrics.ObserveStoreRefreshDuration(string(s.kind), time.Since(start))
	s.logger.InfowCtx(ctx, "Store refresh completed",
		"kind", s.kind,
		"containers", len(containers),
		"failures", len(report.Failures),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return report, nil
}

// Preview evaluates rs against the store's current candidates without
// persisting anything.
func (s *Synchronizer[E]) Preview(ctx context.Context, storeID string, rs rules.RuleSet) (Preview, error) {
	ctx = logging.WithStoreID(ctx, storeID)

	candidates, err := s.load(ctx, storeID)
	if err != nil {
		return Preview{}, errors.Wrap(err, errors.ErrDataAccess).WithDetail("store_id", storeID)
	}

	return Preview{
		StoreID:    storeID,
		Kind:       string(s.kind),
		Candidates: len(candidates),
		MemberIDs:  distinct(s.engine.SelectMatching(candidates, rs)),
	}, nil
}

func lockKey(storeID string, kind container.Kind) string {
	return constants.LockKeyPrefix + storeID + ":" + string(kind)
}

// distinct drops repeated IDs, keeping the first occurrence. A source may
// return the same entity twice and the membership tables store it once.
func distinct(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// diff counts the IDs of next missing from current and the reverse.
func diff(current, next []string) (added, removed int) {
	before := make(map[string]struct{}, len(current))
	for _, id := range current {
		before[id] = struct{}{}
	}
	after := make(map[string]struct{}, len(next))
	for _, id := range next {
		after[id] = struct{}{}
		if _, ok := before[id]; !ok {
			added++
		}
	}
	for id := range before {
		if _, ok := after[id]; !ok {
			removed++
		}
	}
	return added, removed
}
