package management

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"membersync/internal/container"
	"membersync/internal/logger"
	"membersync/internal/membership"
	pkgerrors "membersync/pkg/errors"
	"membersync/pkg/logging"
	"membersync/pkg/rules"
)

type service struct {
	containers ContainerRepository
	members    map[container.Kind]membership.MembershipStore
	refreshers Refreshers
	logger     logger.Logger
}

func NewService(
	containers ContainerRepository,
	members map[container.Kind]membership.MembershipStore,
	refreshers Refreshers,
	log logger.Logger,
) Service {
	return &service{
		containers: containers,
		members:    members,
		refreshers: refreshers,
		logger:     log,
	}
}

func (s *service) CreateContainer(ctx context.Context, storeID string, req CreateContainerRequest) (*ContainerResponse, error) {
	kind, err := ValidateCreateContainer(req)
	if err != nil {
		return nil, err
	}

	c := &container.Container{
		StoreID: storeID,
		Kind:    kind,
		Title:   strings.TrimSpace(req.Title),
		RuleSet: req.RuleSet,
	}
	if err := s.containers.Create(ctx, c); err != nil {
		return nil, s.wrap(err)
	}

	ctx = logging.WithContainerID(ctx, c.ID)
	s.logger.InfowCtx(ctx, "Container created", "kind", c.Kind, "automated", c.Automated())

	return s.refreshed(ctx, c), nil
}

func (s *service) GetContainer(ctx context.Context, storeID, id string) (*ContainerResponse, error) {
	c, err := s.containers.Get(ctx, storeID, id)
	if err != nil {
		return nil, s.wrap(err)
	}
	return s.withCount(ctx, *c)
}

func (s *service) ListContainers(ctx context.Context, storeID, kind string) ([]ContainerResponse, error) {
	var k container.Kind
	if kind != "" {
		parsed, err := container.ParseKind(kind)
		if err != nil {
			return nil, pkgerrors.ErrValidation.WithCause(err).WithDetail("field", "kind")
		}
		k = parsed
	}

	found, err := s.containers.List(ctx, storeID, k)
	if err != nil {
		return nil, s.wrap(err)
	}

	out := make([]ContainerResponse, 0, len(found))
	for _, c := range found {
		resp, err := s.withCount(ctx, c)
		if err != nil {
			return nil, err
		}
		out = append(out, *resp)
	}
	return out, nil
}

// ReplaceRuleSet stores rs on the container, making it automated if it was
// manual, and refreshes its membership.
func (s *service) ReplaceRuleSet(ctx context.Context, storeID, id string, rs rules.RuleSet) (*ContainerResponse, error) {
	if err := ValidateRuleSet(rs); err != nil {
		return nil, err
	}

	rs.Logic = rs.Logic.Normalize()
	c, err := s.containers.SetRuleSet(ctx, storeID, id, &rs)
	if err != nil {
		return nil, s.wrap(err)
	}

	ctx = logging.WithContainerID(ctx, c.ID)
	s.logger.InfowCtx(ctx, "Rule set replaced", "conditions", len(rs.Conditions), "logic", rs.Logic)

	return s.refreshed(ctx, c), nil
}

// ConvertToManual drops the rule set. Current members are kept and become
// manually managed.
func (s *service) ConvertToManual(ctx context.Context, storeID, id string) (*ContainerResponse, error) {
	c, err := s.containers.SetRuleSet(ctx, storeID, id, nil)
	if err != nil {
		return nil, s.wrap(err)
	}
	s.logger.InfowCtx(logging.WithContainerID(ctx, c.ID), "Container converted to manual")
	return s.withCount(ctx, *c)
}

func (s *service) ListMembers(ctx context.Context, storeID, id string) (*MembersResponse, error) {
	c, err := s.containers.Get(ctx, storeID, id)
	if err != nil {
		return nil, s.wrap(err)
	}
	store, err := s.store(c.Kind)
	if err != nil {
		return nil, err
	}
	ids, err := store.ListMembers(ctx, c.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrDataAccess)
	}
	return &MembersResponse{ContainerID: c.ID, MemberIDs: ids}, nil
}

// AddMembers appends entities to a manual container. Automated containers
// reject manual edits with a conflict.
func (s *service) AddMembers(ctx context.Context, storeID, id string, req AddMembersRequest) (*AddMembersResponse, error) {
	ids := make([]string, 0, len(req.IDs))
	for _, entityID := range req.IDs {
		if entityID = strings.TrimSpace(entityID); entityID != "" {
			ids = append(ids, entityID)
		}
	}
	if len(ids) == 0 {
		return nil, pkgerrors.ErrValidation.WithDetail("message", "ids must contain at least one entity id")
	}

	c, err := s.containers.Get(ctx, storeID, id)
	if err != nil {
		return nil, s.wrap(err)
	}
	if c.Automated() {
		return nil, pkgerrors.ErrConflict.
			WithDetail("message", "membership of an automated container is managed by its rule set").
			WithDetail("container_id", c.ID)
	}

	store, err := s.store(c.Kind)
	if err != nil {
		return nil, err
	}
	added, err := store.AddMembers(ctx, c.ID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrDataAccess)
	}
	count, err := store.Count(ctx, c.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrDataAccess)
	}

	s.logger.InfowCtx(logging.WithContainerID(ctx, c.ID), "Manual members added", "added", added)
	return &AddMembersResponse{ContainerID: c.ID, Added: added, MemberCount: count}, nil
}

func (s *service) RefreshContainer(ctx context.Context, storeID, id string) (*membership.Result, error) {
	c, err := s.containers.Get(ctx, storeID, id)
	if err != nil {
		return nil, s.wrap(err)
	}
	refresher, err := s.refreshers.For(c.Kind)
	if err != nil {
		return nil, err
	}
	result, err := refresher.RefreshOne(ctx, *c)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// RefreshStore refreshes one kind, or every kind when kind is empty.
func (s *service) RefreshStore(ctx context.Context, storeID, kind string) ([]membership.Report, error) {
	if kind == "" {
		return s.refreshers.RefreshStore(ctx, storeID)
	}

	k, err := container.ParseKind(kind)
	if err != nil {
		return nil, pkgerrors.ErrValidation.WithCause(err).WithDetail("field", "kind")
	}
	refresher, err := s.refreshers.For(k)
	if err != nil {
		return nil, err
	}
	report, err := refresher.RefreshAll(ctx, storeID)
	if err != nil {
		return nil, err
	}
	return []membership.Report{report}, nil
}

func (s *service) Preview(ctx context.Context, storeID string, req PreviewRequest) (*membership.Preview, error) {
	kind, err := container.ParseKind(req.Kind)
	if err != nil {
		return nil, pkgerrors.ErrValidation.WithCause(err).WithDetail("field", "kind")
	}
	if err := ValidateRuleSet(req.RuleSet); err != nil {
		return nil, err
	}

	refresher, err := s.refreshers.For(kind)
	if err != nil {
		return nil, err
	}
	preview, err := refresher.Preview(ctx, storeID, req.RuleSet)
	if err != nil {
		return nil, err
	}
	return &preview, nil
}

// refreshed runs the refresh that follows a rule set write. A failed refresh
// does not undo the write; the response carries the error and the next
// trigger retries.
func (s *service) refreshed(ctx context.Context, c *container.Container) *ContainerResponse {
	resp := &ContainerResponse{Container: *c}
	if !c.Automated() {
		return resp
	}

	refresher, err := s.refreshers.For(c.Kind)
	if err == nil {
		var result membership.Result
		result, err = refresher.RefreshOne(ctx, *c)
		resp.Refresh = &result
		resp.MemberCount = result.MemberCount
	}
	if err != nil {
		s.logger.WarnwCtx(ctx, "Refresh after rule set write failed", "error", err)
		resp.RefreshError = err.Error()
	}
	return resp
}

func (s *service) withCount(ctx context.Context, c container.Container) (*ContainerResponse, error) {
	store, err := s.store(c.Kind)
	if err != nil {
		return nil, err
	}
	count, err := store.Count(ctx, c.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrDataAccess)
	}
	return &ContainerResponse{Container: c, MemberCount: count}, nil
}

func (s *service) store(kind container.Kind) (membership.MembershipStore, error) {
	store, ok := s.members[kind]
	if !ok {
		return nil, pkgerrors.ErrInternal.WithDetail("message", fmt.Sprintf("no membership store for kind %q", kind))
	}
	return store, nil
}

// wrap passes application errors through and treats anything else as a
// storage failure.
func (s *service) wrap(err error) error {
	var appErr *pkgerrors.Error
	if stderrors.As(err, &appErr) {
		return err
	}
	return pkgerrors.Wrap(err, pkgerrors.ErrDataAccess)
}
