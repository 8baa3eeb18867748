package classrt

import (
	"context"
	"log/slog"
)

// Config controls runtime bounds and diagnostics.
type Config struct {
	// RecursionLimit caps the number of nested constructor and method
	// frames in a single top-level call.
	RecursionLimit int
	Logger         *slog.Logger
}

// Runtime constructs instances and dispatches method calls against the
// classes of one Registry. It holds no per-call state and is safe for
// concurrent use.
type Runtime struct {
	config   Config
	registry *Registry
	sink     Sink
	logger   *slog.Logger
}

// NewRuntime builds a Runtime with defaults applied. A nil registry gets a
// fresh one and a nil sink discards output.
func NewRuntime(registry *Registry, sink Sink, cfg Config) *Runtime {
	if cfg.RecursionLimit <= 0 {
		cfg.RecursionLimit = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if sink == nil {
		sink = DiscardSink
	}
	return &Runtime{
		config:   cfg,
		registry: registry,
		sink:     sink,
		logger:   cfg.Logger,
	}
}

func (rt *Runtime) Registry() *Registry { return rt.registry }

func (rt *Runtime) Sink() Sink { return rt.sink }

// Construct allocates an instance of def and runs every constructor in its
// ancestry chain once, root first. If any level fails no instance is
// returned.
func (rt *Runtime) Construct(ctx context.Context, def *ClassDef, args []Value) (*Instance, error) {
	return rt.newExecution(ctx).Construct(def, args)
}

func (rt *Runtime) ConstructByName(ctx context.Context, name string, args []Value) (*Instance, error) {
	def, err := rt.registry.Lookup(name)
	if err != nil {
		return nil, definitionError("construct", name, "", ErrUnknownClass)
	}
	return rt.Construct(ctx, def, args)
}

// Invoke dispatches name on the dynamic class of inst.
func (rt *Runtime) Invoke(ctx context.Context, inst *Instance, name string, args []Value) (Value, error) {
	return rt.newExecution(ctx).Invoke(inst, name, args)
}

func (rt *Runtime) newExecution(ctx context.Context) *Execution {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Execution{
		runtime:      rt,
		ctx:          ctx,
		recursionCap: rt.config.RecursionLimit,
		callStack:    make([]callFrame, 0, 8),
	}
}
