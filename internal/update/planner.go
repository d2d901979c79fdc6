package update

import (
	"context"
	"fmt"

	"github.com/adamancini/uplift/internal/types"
)

// Planner decides whether a component has a newer release.
type Planner struct {
	resolvers map[types.Strategy]Resolver
}

// NewPlanner creates a planner with a resolver per strategy.
func NewPlanner(resolvers map[types.Strategy]Resolver) *Planner {
	return &Planner{resolvers: resolvers}
}

// Plan resolves the newest release of c and compares it to the
// installed version.
func (p *Planner) Plan(ctx context.Context, c Component) (UpdateStatus, error) {
	strategy := c.Strategy.Default()
	resolver, ok := p.resolvers[strategy]
	if !ok {
		return UpdateStatus{}, fmt.Errorf("%w: no resolver for strategy %q", ErrUnsupported, strategy)
	}

	rel, err := resolver.Resolve(ctx, c.Source)
	if err != nil {
		return UpdateStatus{}, err
	}

	return UpdateStatus{
		Available:        IsNewer(rel.Label, c.InstalledVersion),
		DownloadLink:     rel.DownloadLink,
		ArtifactKind:     rel.Kind,
		ComponentName:    c.Name,
		ReleaseLabel:     rel.Label,
		InstalledVersion: c.InstalledVersion,
	}, nil
}
