package membership

import (
	"context"
	"sync"
	"time"

	"membersync/internal/container"
	"membersync/pkg/errors"
	"membersync/pkg/models"
)

type fakeSource[E any] struct {
	mu       sync.Mutex
	entities map[string][]E
	err      error
	calls    int
}

func (f *fakeSource[E]) ListEntities(_ context.Context, storeID string) ([]E, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]E(nil), f.entities[storeID]...), nil
}

type replaceCall struct {
	containerID string
	ids         []string
}

type fakeMembers struct {
	mu         sync.Mutex
	members    map[string][]string
	replaces   []replaceCall
	lists      int
	replaceErr map[string]error
	listErr    error
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{
		members:    make(map[string][]string),
		replaceErr: make(map[string]error),
	}
}

func (f *fakeMembers) ReplaceMembers(_ context.Context, containerID string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaces = append(f.replaces, replaceCall{containerID: containerID, ids: append([]string(nil), ids...)})
	if err := f.replaceErr[containerID]; err != nil {
		return err
	}
	f.members[containerID] = append([]string(nil), ids...)
	return nil
}

func (f *fakeMembers) ListMembers(_ context.Context, containerID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string{}, f.members[containerID]...), nil
}

func (f *fakeMembers) AddMembers(_ context.Context, containerID string, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing := make(map[string]bool)
	for _, id := range f.members[containerID] {
		existing[id] = true
	}
	added := 0
	for _, id := range ids {
		if !existing[id] {
			existing[id] = true
			f.members[containerID] = append(f.members[containerID], id)
			added++
		}
	}
	return added, nil
}

func (f *fakeMembers) Count(_ context.Context, containerID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.members[containerID]), nil
}

type fakeContainers struct {
	containers []container.Container
	err        error
}

func (f *fakeContainers) ListAutomatedContainers(_ context.Context, storeID string, kind container.Kind) ([]container.Container, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []container.Container
	for _, c := range f.containers {
		if c.StoreID == storeID && c.Kind == kind && c.Automated() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeContainers) Get(_ context.Context, storeID, id string) (*container.Container, error) {
	for _, c := range f.containers {
		if c.StoreID == storeID && c.ID == id {
			c := c
			return &c, nil
		}
	}
	return nil, errors.ErrNotFound
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []models.MembershipRefreshedEvent
}

func (f *fakeNotifier) NotifyMembershipRefreshed(_ context.Context, event models.MembershipRefreshedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (f *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (Unlock, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return nil, ErrLockHeld
	}
	f.held[key] = true
	return func(context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, key)
		f.released = append(f.released, key)
		return nil
	}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []models.MembershipRefreshedEvent
	traces []string
	block  chan struct{}
}

func (f *fakePublisher) Publish(_ context.Context, event models.MembershipRefreshedEvent, traceID string) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	f.traces = append(f.traces, traceID)
	return nil
}

func (f *fakePublisher) published() []models.MembershipRefreshedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.MembershipRefreshedEvent(nil), f.events...)
}
