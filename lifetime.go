package weave

import (
	"encoding/json"
	"fmt"
)

// Lifetime controls when a provider's value is built and how long it
// is cached.
type Lifetime int

const (
	// Transient is built on every resolve; never cached.
	Transient Lifetime = iota

	// Scoped is cached once per owning scope resolver.
	Scoped
)

func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "Transient"
	case Scoped:
		return "Scoped"
	default:
		return fmt.Sprintf("Lifetime(%d)", int(l))
	}
}

// IsValid reports whether l is one of the defined lifetimes.
func (l Lifetime) IsValid() bool {
	return l == Transient || l == Scoped
}

func (l Lifetime) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Lifetime) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Transient", "transient":
		*l = Transient
	case "Scoped", "scoped":
		*l = Scoped
	default:
		return fmt.Errorf("weave: invalid lifetime %q", text)
	}
	return nil
}

func (l Lifetime) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Lifetime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return l.UnmarshalText([]byte(s))
}

// LockMode selects how a cached provider's first build is serialized
// against concurrent callers.
type LockMode int

const (
	// LockAuto picks Thread or Async based on the computed async
	// propagation of the spec (see planner.Generate and planner.Workflow).
	LockAuto LockMode = iota

	// LockThread uses a sync.Mutex. Used for providers reachable only
	// from the sync Resolve path.
	LockThread

	// LockAsync uses a channel semaphore selectable against context
	// cancellation. Used for providers reachable from AResolve.
	LockAsync

	// LockNone disables locking; correctness then relies on the
	// caller not racing on that specific slot.
	LockNone
)

func (m LockMode) String() string {
	switch m {
	case LockAuto:
		return "Auto"
	case LockThread:
		return "Thread"
	case LockAsync:
		return "Async"
	case LockNone:
		return "None"
	default:
		return fmt.Sprintf("LockMode(%d)", int(m))
	}
}
