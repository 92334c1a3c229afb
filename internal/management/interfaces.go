package management

import (
	"context"

	"membersync/internal/container"
	"membersync/internal/membership"
	"membersync/pkg/rules"
)

type Service interface {
	CreateContainer(ctx context.Context, storeID string, req CreateContainerRequest) (*ContainerResponse, error)
	GetContainer(ctx context.Context, storeID, id string) (*ContainerResponse, error)
	ListContainers(ctx context.Context, storeID, kind string) ([]ContainerResponse, error)
	ReplaceRuleSet(ctx context.Context, storeID, id string, rs rules.RuleSet) (*ContainerResponse, error)
	ConvertToManual(ctx context.Context, storeID, id string) (*ContainerResponse, error)

	ListMembers(ctx context.Context, storeID, id string) (*MembersResponse, error)
	AddMembers(ctx context.Context, storeID, id string, req AddMembersRequest) (*AddMembersResponse, error)

	RefreshContainer(ctx context.Context, storeID, id string) (*membership.Result, error)
	RefreshStore(ctx context.Context, storeID, kind string) ([]membership.Report, error)
	Preview(ctx context.Context, storeID string, req PreviewRequest) (*membership.Preview, error)
}

// ContainerRepository is the container store as the management API uses it.
type ContainerRepository interface {
	Create(ctx context.Context, c *container.Container) error
	Get(ctx context.Context, storeID, id string) (*container.Container, error)
	List(ctx context.Context, storeID string, kind container.Kind) ([]container.Container, error)
	SetRuleSet(ctx context.Context, storeID, id string, rs *rules.RuleSet) (*container.Container, error)
}

// Refreshers resolves the synchronizer of a container kind.
type Refreshers interface {
	For(kind container.Kind) (membership.Refresher, error)
	RefreshStore(ctx context.Context, storeID string) ([]membership.Report, error)
}
