package render

import (
	"github.com/trebuchet-org/treb-anvil/internal/domain"
	"github.com/trebuchet-org/treb-anvil/internal/usecase"
)

type Renderer[T any] interface {
	Render(result T) error
}

var (
	_ Renderer[*domain.NodeStatus]              = (*NodeRenderer)(nil)
	_ Renderer[*usecase.TraceTransactionResult] = (*TraceRenderer)(nil)
)
