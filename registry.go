package weave

import (
	"reflect"
	"sync"

	"weave/internal/generics"
)

// registry is the flat, mutable store of Descriptors a Container
// writes to at registration time and the planner reads from at
// Compile time. It also holds the two side tables the flat map alone
// cannot express: open-generic templates (matched structurally, never
// by exact key) and decoration rules (applied after planning, not
// stored as ordinary slots).
//
// Grounded on the teacher's internal/registry.Descriptor flat-map
// design, extended with the transactional Mutate wrapper the spec
// requires (spec.md §4.2 step "transactional mutation").
type registry struct {
	mu sync.RWMutex

	bySlot []*Descriptor
	byKey  map[string]*Descriptor

	openGenerics []*Descriptor // keyed by openGenericKey, matched structurally

	// decorations holds decoration rules registered via
	// Container.Decorate, keyed by the identity of the key they
	// decorate, in registration order. A rule list materializes onto
	// a Descriptor's Decorators field whenever a matching descriptor
	// exists, whether the rule or the descriptor arrived first
	// (spec.md §4.2 step 7).
	decorations map[string][]Decorator

	nextSlot int
}

func newRegistry() *registry {
	return &registry{
		byKey:       make(map[string]*Descriptor),
		decorations: make(map[string][]Decorator),
	}
}

// snapshot is a shallow copy of registry state sufficient to roll back
// a failed Mutate: the byKey/openGenerics slices are copied, but the
// Descriptor values they point to are not (a failed mutation either
// never touched an existing *Descriptor or replaced the map entry
// wholesale with a new one).
type snapshot struct {
	bySlot       []*Descriptor
	byKey        map[string]*Descriptor
	openGenerics []*Descriptor
	decorations  map[string][]Decorator
	nextSlot     int
}

func (r *registry) snapshot() snapshot {
	byKey := make(map[string]*Descriptor, len(r.byKey))
	for k, v := range r.byKey {
		byKey[k] = v
	}
	decorations := make(map[string][]Decorator, len(r.decorations))
	for k, v := range r.decorations {
		decorations[k] = append([]Decorator(nil), v...)
	}
	return snapshot{
		bySlot:       append([]*Descriptor(nil), r.bySlot...),
		byKey:        byKey,
		openGenerics: append([]*Descriptor(nil), r.openGenerics...),
		decorations:  decorations,
		nextSlot:     r.nextSlot,
	}
}

func (r *registry) restore(s snapshot) {
	r.bySlot = s.bySlot
	r.byKey = s.byKey
	r.openGenerics = s.openGenerics
	r.decorations = s.decorations
	r.nextSlot = s.nextSlot
}

// Mutate runs fn under the registry write lock with a savepoint: if
// fn returns an error, every change fn made is rolled back before
// Mutate returns. This is what lets Container.AddFactory and friends
// fail validation (scope-contract revalidation) without corrupting a previously-valid registry (spec.md §4.2,
// grounded on the teacher's addInternal rollback-on-error flow in
// provider.go).
func (r *registry) Mutate(fn func(tx *registryTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	save := r.snapshot()
	tx := &registryTx{r: r}
	if err := fn(tx); err != nil {
		r.restore(save)
		return err
	}
	return nil
}

// registryTx is the mutation surface handed to Mutate's callback. It
// exists so ordinary reads (Resolve-time lookups) never need the
// write lock, while all writes funnel through one auditable path.
type registryTx struct {
	r *registry
}

// Insert assigns d a fresh stable slot and stores it under d.Key. If
// d.Key already has an entry, it is replaced but keeps its old slot
// (a Replace-style re-registration through any Add* call), matching
// the teacher's descriptor-replacement semantics.
func (tx *registryTx) Insert(d *Descriptor) {
	r := tx.r
	if existing, ok := r.byKey[d.Key.identity()]; ok {
		d.Slot = existing.Slot
		r.bySlot[d.Slot] = d
		r.byKey[d.Key.identity()] = d
		if _, isOpen := d.Key.(openGenericKey); isOpen {
			for i, og := range r.openGenerics {
				if og.Key.identity() == d.Key.identity() {
					r.openGenerics[i] = d
				}
			}
		}
		tx.materializeChain(d)
		return
	}

	d.Slot = r.nextSlot
	r.nextSlot++
	r.bySlot = append(r.bySlot, d)
	r.byKey[d.Key.identity()] = d

	if _, isOpen := d.Key.(openGenericKey); isOpen {
		r.openGenerics = append(r.openGenerics, d)
	}

	tx.materializeChain(d)
}

// materializeChain copies any decoration rules already registered
// against d.Key onto d.Decorators, in registration order.
func (tx *registryTx) materializeChain(d *Descriptor) {
	if rules, ok := tx.r.decorations[d.Key.identity()]; ok {
		d.Decorators = append([]Decorator(nil), rules...)
	}
}

// AddDecorationRule appends rule to the decoration chain for key and
// rebuilds the Decorators field of a matching, already-registered
// descriptor, if any (spec.md §4.2 step 7: rules and the descriptor
// they decorate may arrive in either order).
func (tx *registryTx) AddDecorationRule(key Key, rule Decorator) {
	id := key.identity()
	tx.r.decorations[id] = append(tx.r.decorations[id], rule)
	if d, ok := tx.r.byKey[id]; ok {
		tx.materializeChain(d)
	}
}

// Lookup returns the descriptor registered for key, if any.
func (tx *registryTx) Lookup(key Key) (*Descriptor, bool) {
	d, ok := tx.r.byKey[key.identity()]
	return d, ok
}

// AllOf returns every descriptor whose key's BaseKey equals base, in
// slot (registration) order, for the All[K] wrapper.
func (tx *registryTx) AllOf(base Key) []*Descriptor {
	var out []*Descriptor
	for _, d := range tx.r.bySlot {
		if d == nil {
			continue
		}
		if BaseKey(d.Key).identity() == base.identity() {
			out = append(out, d)
		}
	}
	return out
}

// MatchOpenGeneric structurally matches candidate (a concrete,
// fully-closed reflect.Type) against every registered open-generic
// template and returns the most specific match, per spec.md §4.5's
// tie-break of "later registration wins" (see DESIGN.md Open Question
// decisions).
func (tx *registryTx) MatchOpenGeneric(candidate reflect.Type, matchFn func(template, candidate reflect.Type) (generics.Bindings, bool)) (*Descriptor, bool) {
	return bestOpenGenericMatch(tx.r.openGenerics, candidate, matchFn)
}

// read-only accessors used by the planner, which takes its own
// snapshot of the registry state once at Compile time and never holds
// r.mu across planning.
func (r *registry) readSnapshot() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Descriptor, 0, len(r.bySlot))
	for _, d := range r.bySlot {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

func (r *registry) lookup(key Key) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byKey[key.identity()]
	return d, ok
}

func (r *registry) descriptorBySlot(slot int) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if slot < 0 || slot >= len(r.bySlot) {
		return nil, false
	}
	d := r.bySlot[slot]
	return d, d != nil
}

// matchOpenGeneric is the read-only counterpart of
// registryTx.MatchOpenGeneric, used at resolve time without taking the
// write lock.
func (r *registry) matchOpenGeneric(candidate reflect.Type, matchFn func(template, candidate reflect.Type) (generics.Bindings, bool)) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return bestOpenGenericMatch(r.openGenerics, candidate, matchFn)
}

// bestOpenGenericMatch scores every structurally matching open-generic
// template by generics.Specificity (how many of its type positions are
// concrete rather than free variables) and returns the highest-scoring
// descriptor, breaking ties by later registration order — spec.md
// Testable Property 9's "the template with the most concrete
// arguments... wins; ties broken by later registration order".
// candidates is iterated in registration order, so a >= comparison
// lets a same-score later entry win a tie while a strictly higher
// score always wins regardless of order.
func bestOpenGenericMatch(candidates []*Descriptor, candidate reflect.Type, matchFn func(template, candidate reflect.Type) (generics.Bindings, bool)) (*Descriptor, bool) {
	var best *Descriptor
	bestScore := -1
	for _, d := range candidates {
		ok, isOpen := d.Key.(openGenericKey)
		if !isOpen {
			continue
		}
		if _, matched := matchFn(ok.template, candidate); !matched {
			continue
		}
		score := generics.Specificity(ok.template)
		if best == nil || score >= bestScore {
			best = d
			bestScore = score
		}
	}
	return best, best != nil
}
