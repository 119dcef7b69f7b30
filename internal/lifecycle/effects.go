package lifecycle

import "context"

// effect is a best-effort side channel action (broadcast, push, email,
// provider room deletion) queued during an operation and executed only
// after the authoritative store writes have succeeded. Failures are logged
// and swallowed; they never fail the primary operation.
type effect struct {
	name string
	run  func(ctx context.Context) error
}

type effects struct {
	list []effect
}

func (e *effects) add(name string, run func(ctx context.Context) error) {
	e.list = append(e.list, effect{name: name, run: run})
}

// broadcast queues a fire-and-forget gateway emission.
func (e *effects) broadcast(name string, run func()) {
	e.add(name, func(context.Context) error {
		run()
		return nil
	})
}

func (o *Orchestrator) runEffects(ctx context.Context, fx *effects) {
	for _, ef := range fx.list {
		if err := ef.run(ctx); err != nil {
			o.log.Warn("side effect failed", "effect", ef.name, "err", err)
		}
	}
}
