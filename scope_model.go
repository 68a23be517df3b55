package weave

import "fmt"

// ScopeLevel is a position in the totally ordered set of scope names.
// The root level is the shallowest (ScopeLevel(0)).
type ScopeLevel int

// scopeDef describes one named level in a scope set.
type scopeDef struct {
	name      string
	level     ScopeLevel
	skippable bool
}

// ScopeSet is the totally ordered, immutable-after-construction set of
// scope levels a Container resolves against. At least one level must
// be non-skippable (the spec.md §3.1 Scope invariant).
type ScopeSet struct {
	defs []scopeDef
}

// ScopeSetBuilder constructs a ScopeSet level by level, shallowest
// first.
type ScopeSetBuilder struct {
	defs []scopeDef
	seen map[string]bool
}

// NewScopeSetBuilder starts a new scope set definition.
func NewScopeSetBuilder() *ScopeSetBuilder {
	return &ScopeSetBuilder{seen: make(map[string]bool)}
}

// Add appends the next deeper scope level. skippable scopes are
// bypassed by default next-scope transitions (DefaultNext, and the
// TransitionPlan that EnterScope follows).
func (b *ScopeSetBuilder) Add(name string, skippable bool) *ScopeSetBuilder {
	if b.seen[name] {
		panic(fmt.Sprintf("weave: duplicate scope name %q", name))
	}
	b.seen[name] = true
	b.defs = append(b.defs, scopeDef{name: name, level: ScopeLevel(len(b.defs)), skippable: skippable})
	return b
}

// Build finalizes the scope set. Panics if no non-skippable scope was
// ever added (spec.md §3.1 invariant: "≥1 scope is non-skippable").
func (b *ScopeSetBuilder) Build() *ScopeSet {
	hasNonSkippable := false
	for _, d := range b.defs {
		if !d.skippable {
			hasNonSkippable = true
			break
		}
	}
	if !hasNonSkippable {
		panic("weave: scope set must contain at least one non-skippable scope")
	}
	return &ScopeSet{defs: append([]scopeDef(nil), b.defs...)}
}

// ScopeRoot is the level every ScopeSet implicitly starts at: level 0,
// the first level added to its builder.
const ScopeRoot ScopeLevel = 0

// DefaultScopeSet returns the common two-level {Root, Request} set
// used when a Container is created without an explicit ScopeSet.
func DefaultScopeSet() *ScopeSet {
	return NewScopeSetBuilder().
		Add("root", false).
		Add("request", false).
		Build()
}

// Depth returns the number of defined scope levels.
func (s *ScopeSet) Depth() int { return len(s.defs) }

// Name returns the name of the given level, or "" if out of range.
func (s *ScopeSet) Name(level ScopeLevel) string {
	if int(level) < 0 || int(level) >= len(s.defs) {
		return ""
	}
	return s.defs[level].name
}

// Skippable reports whether level is marked skippable.
func (s *ScopeSet) Skippable(level ScopeLevel) bool {
	if int(level) < 0 || int(level) >= len(s.defs) {
		return false
	}
	return s.defs[level].skippable
}

// MaxLevel returns the deepest defined level.
func (s *ScopeSet) MaxLevel() ScopeLevel { return ScopeLevel(len(s.defs) - 1) }

// DefaultNext returns the nearest deeper non-skippable scope after
// current, or (-1, false) if none exists.
func (s *ScopeSet) DefaultNext(current ScopeLevel) (ScopeLevel, bool) {
	for l := current + 1; int(l) < len(s.defs); l++ {
		if !s.defs[l].skippable {
			return l, true
		}
	}
	return -1, false
}

// ImmediateNext returns the nearest deeper scope (possibly skippable),
// or (-1, false) if current is already the deepest level.
func (s *ScopeSet) ImmediateNext(current ScopeLevel) (ScopeLevel, bool) {
	if int(current)+1 >= len(s.defs) {
		return -1, false
	}
	return current + 1, true
}

// TransitionPlan returns the ordered chain of intermediate levels to
// pass through (exclusive of current, inclusive of target) when
// jumping directly to target, per spec.md §4.4.4 step 4: repeatedly
// pick ImmediateNext, but use DefaultNext when it does not overshoot
// target.
func (s *ScopeSet) TransitionPlan(current, target ScopeLevel) ([]ScopeLevel, error) {
	if target < current {
		return nil, fmt.Errorf("weave: cannot transition backward from level %d to %d", current, target)
	}
	if int(target) >= len(s.defs) {
		return nil, fmt.Errorf("weave: level %d is not a valid scope", target)
	}
	var plan []ScopeLevel
	cur := current
	for cur != target {
		def, ok := s.DefaultNext(cur)
		if ok && def <= target {
			plan = append(plan, def)
			cur = def
			continue
		}
		imm, ok := s.ImmediateNext(cur)
		if !ok {
			return nil, fmt.Errorf("weave: no path from level %d to %d", current, target)
		}
		plan = append(plan, imm)
		cur = imm
	}
	return plan, nil
}
