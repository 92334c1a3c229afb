package membership

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membersync/internal/catalog"
	"membersync/internal/container"
	"membersync/internal/logger"
	"membersync/pkg/errors"
	"membersync/pkg/rules"
)

var expensive = &rules.RuleSet{
	Conditions: []rules.Condition{{Field: "price", Operator: rules.OperatorGreaterThan, Value: 100}},
	Logic:      rules.LogicAnd,
}

type syncFixture struct {
	source     *fakeSource[catalog.Product]
	members    *fakeMembers
	containers *fakeContainers
	notifier   *fakeNotifier
	locker     *fakeLocker
	sync       *Synchronizer[catalog.Product]
}

func newSyncFixture(containers ...container.Container) *syncFixture {
	f := &syncFixture{
		source: &fakeSource[catalog.Product]{entities: map[string][]catalog.Product{
			"s1": {
				{ID: "p1", StoreID: "s1", Price: "50.00"},
				{ID: "p2", StoreID: "s1", Price: "150.00"},
				{ID: "p3", StoreID: "s1", Price: "300.00"},
			},
			"s2": {
				{ID: "q1", StoreID: "s2", Price: "500.00"},
			},
		}},
		members:    newFakeMembers(),
		containers: &fakeContainers{containers: containers},
		notifier:   &fakeNotifier{},
		locker:     newFakeLocker(),
	}
	f.sync = NewSynchronizer(
		container.KindCollection,
		catalog.NewProductEngine(logger.NopLogger()),
		f.source,
		f.members,
		f.containers,
		logger.NopLogger(),
		WithNotifier(f.notifier),
		WithLocker(f.locker, 0),
	)
	return f
}

func automated(id, storeID string) container.Container {
	return container.Container{ID: id, StoreID: storeID, Kind: container.KindCollection, RuleSet: expensive}
}

func TestRefreshOne_ReplacesMembershipAndNotifies(t *testing.T) {
	f := newSyncFixture()
	f.members.members["c1"] = []string{"p1", "p2"}

	result, err := f.sync.RefreshOne(context.Background(), automated("c1", "s1"))

	require.NoError(t, err)
	assert.Equal(t, StateIdle, result.State)
	assert.Equal(t, 3, result.Candidates)
	assert.Equal(t, 2, result.MemberCount)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, []string{"p2", "p3"}, f.members.members["c1"])

	require.Len(t, f.notifier.events, 1)
	event := f.notifier.events[0]
	assert.Equal(t, "c1", event.ContainerID)
	assert.Equal(t, "s1", event.StoreID)
	assert.Equal(t, "collection", event.Kind)
	assert.Equal(t, 2, event.MemberCount)
}

func TestRefreshOne_Idempotent(t *testing.T) {
	f := newSyncFixture()
	c := automated("c1", "s1")

	_, err := f.sync.RefreshOne(context.Background(), c)
	require.NoError(t, err)
	second, err := f.sync.RefreshOne(context.Background(), c)
	require.NoError(t, err)

	require.Len(t, f.members.replaces, 2)
	assert.Equal(t, f.members.replaces[0].ids, f.members.replaces[1].ids)
	assert.Zero(t, second.Added)
	assert.Zero(t, second.Removed)
}

func TestRefreshOne_ManualContainerTouchesNothing(t *testing.T) {
	f := newSyncFixture()

	result, err := f.sync.RefreshOne(context.Background(), container.Container{
		ID: "manual", StoreID: "s1", Kind: container.KindCollection,
	})

	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Zero(t, f.source.calls)
	assert.Zero(t, f.members.lists)
	assert.Empty(t, f.members.replaces)
	assert.Empty(t, f.notifier.events)
}

func TestRefreshOne_DiscardsOtherStoresCandidates(t *testing.T) {
	f := newSyncFixture()
	f.source.entities["s1"] = append(f.source.entities["s1"],
		catalog.Product{ID: "leak", StoreID: "s2", Price: "999.00"})

	result, err := f.sync.RefreshOne(context.Background(), automated("c1", "s1"))

	require.NoError(t, err)
	assert.Equal(t, 3, result.Candidates)
	assert.Equal(t, []string{"p2", "p3"}, f.members.members["c1"])
}

func TestRefreshOne_RepeatedCandidateCountedOnce(t *testing.T) {
	f := newSyncFixture()
	f.source.entities["s1"] = append(f.source.entities["s1"],
		catalog.Product{ID: "p3", StoreID: "s1", Price: "300.00"})

	result, err := f.sync.RefreshOne(context.Background(), automated("c1", "s1"))

	require.NoError(t, err)
	assert.Equal(t, 2, result.MemberCount)
	assert.Equal(t, 2, result.Added)
	assert.Equal(t, []string{"p2", "p3"}, f.members.members["c1"])
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, 2, f.notifier.events[0].MemberCount)
}

func TestRefreshOne_EmptyStoreClearsMembership(t *testing.T) {
	f := newSyncFixture()
	f.members.members["c9"] = []string{"old"}

	result, err := f.sync.RefreshOne(context.Background(), automated("c9", "empty"))

	require.NoError(t, err)
	assert.Zero(t, result.MemberCount)
	assert.Equal(t, 1, result.Removed)
	assert.Empty(t, f.members.members["c9"])
}

func TestRefreshOne_LoadFailureKeepsMembership(t *testing.T) {
	f := newSyncFixture()
	f.members.members["c1"] = []string{"p1"}
	f.source.err = stderrors.New("connection refused")

	result, err := f.sync.RefreshOne(context.Background(), automated("c1", "s1"))

	require.Error(t, err)
	assert.True(t, errors.IsDataAccess(err))
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, StateLoading, result.FailedIn)
	assert.Empty(t, f.members.replaces)
	assert.Equal(t, []string{"p1"}, f.members.members["c1"])
	assert.Empty(t, f.notifier.events)
}

func TestRefreshOne_PersistFailure(t *testing.T) {
	f := newSyncFixture()
	f.members.replaceErr["c1"] = stderrors.New("tx aborted")

	result, err := f.sync.RefreshOne(context.Background(), automated("c1", "s1"))

	require.Error(t, err)
	assert.Equal(t, StatePersisting, result.FailedIn)
	assert.Empty(t, f.notifier.events)
}

func TestRefreshOne_RejectsOtherKind(t *testing.T) {
	f := newSyncFixture()
	c := automated("seg", "s1")
	c.Kind = container.KindSegment

	_, err := f.sync.RefreshOne(context.Background(), c)

	assert.True(t, errors.IsValidation(err))
	assert.Zero(t, f.source.calls)
}

func TestRefreshAll_IsolatesFailures(t *testing.T) {
	f := newSyncFixture(
		automated("c1", "s1"),
		automated("c2", "s1"),
		automated("c3", "s1"),
		automated("other", "s2"),
		container.Container{ID: "manual", StoreID: "s1", Kind: container.KindCollection},
	)
	f.members.replaceErr["c2"] = stderrors.New("deadlock detected")

	report, err := f.sync.RefreshAll(context.Background(), "s1")

	require.NoError(t, err)
	assert.Len(t, report.Results, 3)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "c2", report.Failures[0].ContainerID)
	assert.True(t, report.Failed())
	assert.Equal(t, []string{"p2", "p3"}, f.members.members["c1"])
	assert.Equal(t, []string{"p2", "p3"}, f.members.members["c3"])
	assert.NotContains(t, f.members.members, "other")
	assert.Equal(t, []string{lockKey("s1", container.KindCollection)}, f.locker.released)
}

func TestRefreshAll_LockHeld(t *testing.T) {
	f := newSyncFixture(automated("c1", "s1"))
	_, err := f.locker.Acquire(context.Background(), lockKey("s1", container.KindCollection), 0)
	require.NoError(t, err)

	_, err = f.sync.RefreshAll(context.Background(), "s1")

	assert.True(t, errors.IsRefreshInProgress(err))
	assert.Zero(t, f.source.calls)
}

func TestRefreshAll_ListFailure(t *testing.T) {
	f := newSyncFixture()
	f.containers.err = stderrors.New("mongo unreachable")

	_, err := f.sync.RefreshAll(context.Background(), "s1")

	assert.True(t, errors.IsDataAccess(err))
	assert.Empty(t, f.locker.held)
}

func TestRefreshAll_StopsOnCanceledContext(t *testing.T) {
	f := newSyncFixture(automated("c1", "s1"), automated("c2", "s1"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.sync.RefreshAll(ctx, "s1")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Results)
}

func TestPreview_DoesNotPersist(t *testing.T) {
	f := newSyncFixture()

	preview, err := f.sync.Preview(context.Background(), "s1", rules.RuleSet{
		Conditions: []rules.Condition{{Field: "price", Operator: rules.OperatorLessThan, Value: "200"}},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, preview.MemberIDs)
	assert.Equal(t, 3, preview.Candidates)
	assert.Empty(t, f.members.replaces)
	assert.Empty(t, f.notifier.events)
}

func TestDistinct(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, distinct([]string{"a", "b", "a", "c", "b"}))
	assert.Empty(t, distinct(nil))
}

func TestDiff(t *testing.T) {
	added, removed := diff([]string{"a", "b", "c"}, []string{"b", "c", "d", "e"})
	assert.Equal(t, 2, added)
	assert.Equal(t, 1, removed)

	added, removed = diff(nil, nil)
	assert.Zero(t, added)
	assert.Zero(t, removed)
}
