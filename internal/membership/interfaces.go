package membership

import (
	"context"
	"errors"
	"time"

	"membersync/internal/container"
	"membersync/pkg/models"
	"membersync/pkg/rules"
)

// CandidateSource loads every entity of one kind belonging to a store.
type CandidateSource[E rules.Entity] interface {
	ListEntities(ctx context.Context, storeID string) ([]E, error)
}

// MembershipStore persists the ordered member IDs of containers.
type MembershipStore interface {
	// ReplaceMembers atomically swaps the membership of containerID for ids.
	ReplaceMembers(ctx context.Context, containerID string, ids []string) error
	ListMembers(ctx context.Context, containerID string) ([]string, error)
	// AddMembers appends ids that are not members yet and returns how many
	// rows were added.
	AddMembers(ctx context.Context, containerID string, ids []string) (int, error)
	Count(ctx context.Context, containerID string) (int, error)
}

type ContainerStore interface {
	ListAutomatedContainers(ctx context.Context, storeID string, kind container.Kind) ([]container.Container, error)
}

type ContainerGetter interface {
	Get(ctx context.Context, storeID, id string) (*container.Container, error)
}

type StoreLister interface {
	ListStoreIDs(ctx context.Context) ([]string, error)
}

// Notifier announces refreshed memberships. Implementations must not block
// the caller.
type Notifier interface {
	NotifyMembershipRefreshed(ctx context.Context, event models.MembershipRefreshedEvent)
}

// ErrLockHeld is returned by Locker.Acquire when another holder owns the key.
var ErrLockHeld = errors.New("lock held by another refresh")

type Unlock func(ctx context.Context) error

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Unlock, error)
}

type nopNotifier struct{}

func (nopNotifier) NotifyMembershipRefreshed(context.Context, models.MembershipRefreshedEvent) {}
