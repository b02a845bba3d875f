package adapters

import (
	"github.com/google/wire"
	"github.com/trebuchet-org/treb-anvil/internal/adapters/anvil"
	"github.com/trebuchet-org/treb-anvil/internal/adapters/calltree"
	"github.com/trebuchet-org/treb-anvil/internal/adapters/fork"
	"github.com/trebuchet-org/treb-anvil/internal/adapters/ports"
	"github.com/trebuchet-org/treb-anvil/internal/adapters/rpc"
	"github.com/trebuchet-org/treb-anvil/internal/adapters/vmerror"
	"github.com/trebuchet-org/treb-anvil/internal/usecase"
)

// PortSet provides the process-wide port registry and allocator
var PortSet = wire.NewSet(
	ports.NewRegistry,
	ports.NewAllocator,
	wire.Bind(new(usecase.PortAllocator), new(*ports.Allocator)),
)

// ProcessSet provides anvil process supervision
var ProcessSet = wire.NewSet(
	anvil.NewSupervisor,
	wire.Bind(new(usecase.NodeSupervisor), new(*anvil.Supervisor)),
)

// RPCSet provides JSON-RPC connections to nodes
var RPCSet = wire.NewSet(
	rpc.NewHandshaker,
	rpc.NewConnector,
	wire.Bind(new(usecase.Connector), new(*rpc.Connector)),
)

// ForkSet provides upstream resolution and hardfork detection
var ForkSet = wire.NewSet(
	fork.DefaultHardforkTable,
	fork.NewReconciler,
	wire.Bind(new(usecase.Forker), new(*fork.Reconciler)),
)

// DiagnosticsSet provides error translation and call tree reconstruction
var DiagnosticsSet = wire.NewSet(
	vmerror.NewTranslator,
	wire.Bind(new(usecase.ErrorTranslator), new(*vmerror.Translator)),

	calltree.NewBuilder,
	wire.Bind(new(usecase.CallTreeBuilder), new(*calltree.Builder)),
)

// AllAdapters includes all adapter sets
var AllAdapters = wire.NewSet(
	PortSet,
	ProcessSet,
	RPCSet,
	ForkSet,
	DiagnosticsSet,
)
