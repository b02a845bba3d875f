package usecase

import (
	"context"
	"fmt"

	"github.com/trebuchet-org/treb-anvil/internal/domain"
)

// DetectHardfork resolves the fork spec of a network and the hardfork
// active at its fork block
type DetectHardfork struct {
	forker Forker
}

// NewDetectHardfork creates a new detect hardfork use case
func NewDetectHardfork(forker Forker) *DetectHardfork {
	return &DetectHardfork{forker: forker}
}

// DetectHardforkParams contains parameters for hardfork detection
type DetectHardforkParams struct {
	Network domain.NetworkChoice
	Fork    *domain.ForkOverride
}

// DetectHardforkResult contains the resolved spec
type DetectHardforkResult struct {
	Spec        domain.ForkSpec
	UpstreamURL string
	Hardfork    string
	Found       bool
}

// Execute resolves the upstream and looks up the hardfork
func (d *DetectHardfork) Execute(ctx context.Context, params DetectHardforkParams) (*DetectHardforkResult, error) {
	if !params.Network.IsFork() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotForked, params.Network)
	}

	spec, url, err := d.forker.ResolveUpstream(ctx, params.Network, params.Fork)
	if err != nil {
		return nil, err
	}

	hardfork, found := d.forker.DetectHardfork(&spec)
	return &DetectHardforkResult{
		Spec:        spec,
		UpstreamURL: url,
		Hardfork:    hardfork,
		Found:       found,
	}, nil
}
