package membership

import (
	"context"
	stderrors "errors"
	"fmt"

	"membersync/internal/container"
	"membersync/pkg/errors"
	"membersync/pkg/rules"
)

// Refresher is the kind-independent face of a Synchronizer.
type Refresher interface {
	Kind() container.Kind
	RefreshOne(ctx context.Context, c container.Container) (Result, error)
	RefreshAll(ctx context.Context, storeID string) (Report, error)
	Preview(ctx context.Context, storeID string, rs rules.RuleSet) (Preview, error)
}

// Registry routes work to the synchronizer of each container kind.
type Registry struct {
	refreshers map[container.Kind]Refresher
	order      []container.Kind
}

func NewRegistry(refreshers ...Refresher) *Registry {
	r := &Registry{refreshers: make(map[container.Kind]Refresher, len(refreshers))}
	for _, refresher := range refreshers {
		if _, ok := r.refreshers[refresher.Kind()]; !ok {
			r.order = append(r.order, refresher.Kind())
		}
		r.refreshers[refresher.Kind()] = refresher
	}
	return r
}

func (r *Registry) For(kind container.Kind) (Refresher, error) {
	refresher, ok := r.refreshers[kind]
	if !ok {
		return nil, errors.ErrValidation.WithDetail("message", fmt.Sprintf("no synchronizer for kind %q", kind))
	}
	return refresher, nil
}

func (r *Registry) Kinds() []container.Kind {
	return append([]container.Kind(nil), r.order...)
}

// RefreshStore runs RefreshAll for every registered kind. A kind that fails
// as a whole does not stop the others; its error is returned joined with the
// rest.
func (r *Registry) RefreshStore(ctx context.Context, storeID string) ([]Report, error) {
	reports := make([]Report, 0, len(r.order))
	var errs []error
	for _, kind := range r.order {
		report, err := r.refreshers[kind].RefreshAll(ctx, storeID)
		if err != nil {
			errs = append(errs, fmt.Errorf("refresh %s: %w", kind, err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, stderrors.Join(errs...)
}
