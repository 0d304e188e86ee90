package proposal

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// Rules is the capability table for one proposal variant: how to parse its
// settings and tallies, and how to decide its outcome. Variants are a
// closed set dispatched through these function values instead of string
// switches scattered across the evaluator.
type Rules struct {
	Variant     Variant
	DisplayName string
	Description string

	// QuorumBps overrides the tenant default quorum basis points for this
	// variant when non-nil (optimistic proposals set it to zero: they have
	// no quorum).
	QuorumBps *int64

	ParseData    func(raw []byte) (Data, error)
	ParseResults func(raw []byte) (Results, error)
	Tally        func(p *Proposal) (Outcome, error)
}

// Registry maps variant tags to their rules. It is written during process
// start-up and frozen before any factory or repository work begins; after
// Freeze, resolution reads an immutable snapshot without locking.
type Registry struct {
	mu      sync.Mutex
	pending map[Variant]Rules
	frozen  atomic.Pointer[map[Variant]Rules]
}

func NewRegistry() *Registry {
	return &Registry{pending: make(map[Variant]Rules)}
}

// Register adds a variant's rules. Registering an identical rule set twice
// is a no-op; registering different rules for an existing tag is an error.
// After Freeze only idempotent re-registration is accepted.
func (r *Registry) Register(rules Rules) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snap := r.frozen.Load(); snap != nil {
		existing, ok := (*snap)[rules.Variant]
		if ok && rulesEqual(existing, rules) {
			return nil
		}
		return fmt.Errorf("register %s after freeze: %w", rules.Variant, ErrRegistryConflict)
	}

	if existing, ok := r.pending[rules.Variant]; ok {
		if rulesEqual(existing, rules) {
			return nil
		}
		return fmt.Errorf("register %s: %w", rules.Variant, ErrRegistryConflict)
	}
	r.pending[rules.Variant] = rules
	return nil
}

// Freeze publishes the registered rules as an immutable snapshot. It is the
// readiness gate: Resolve fails until Freeze has run. Calling Freeze twice
// is harmless.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen.Load() != nil {
		return
	}
	snap := make(map[Variant]Rules, len(r.pending))
	for tag, rules := range r.pending {
		snap[tag] = rules
	}
	r.frozen.Store(&snap)
}

// Resolve returns the rules for a variant tag from the frozen snapshot.
func (r *Registry) Resolve(v Variant) (Rules, error) {
	snap := r.frozen.Load()
	if snap == nil {
		return Rules{}, ErrRegistryNotReady
	}
	rules, ok := (*snap)[v]
	if !ok {
		return Rules{}, fmt.Errorf("resolve %q: %w", v, ErrUnknownVariant)
	}
	return rules, nil
}

// Variants lists the registered tags of the frozen snapshot.
func (r *Registry) Variants() []Variant {
	snap := r.frozen.Load()
	if snap == nil {
		return nil
	}
	out := make([]Variant, 0, len(*snap))
	for tag := range *snap {
		out = append(out, tag)
	}
	return out
}

func rulesEqual(a, b Rules) bool {
	if a.Variant != b.Variant || a.DisplayName != b.DisplayName || a.Description != b.Description {
		return false
	}
	if (a.QuorumBps == nil) != (b.QuorumBps == nil) {
		return false
	}
	if a.QuorumBps != nil && *a.QuorumBps != *b.QuorumBps {
		return false
	}
	return funcPtr(a.ParseData) == funcPtr(b.ParseData) &&
		funcPtr(a.ParseResults) == funcPtr(b.ParseResults) &&
		funcPtr(a.Tally) == funcPtr(b.Tally)
}

func funcPtr(f any) uintptr {
	v := reflect.ValueOf(f)
	if v.IsNil() {
		return 0
	}
	return v.Pointer()
}

// DefaultRegistry builds a registry with the three built-in variants
// registered and frozen, ready for factories.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, rules := range BuiltinRules() {
		// Built-in registration cannot conflict with an empty registry.
		_ = r.Register(rules)
	}
	r.Freeze()
	return r
}

// BuiltinRules returns the rule sets for the built-in variants.
func BuiltinRules() []Rules {
	return []Rules{StandardRules(), ApprovalRules(), OptimisticRules()}
}

var optimisticQuorumBps int64 = 0

// StandardRules describes simple FOR/AGAINST/ABSTAIN voting.
func StandardRules() Rules {
	return Rules{
		Variant:      VariantStandard,
		DisplayName:  "Standard Proposal",
		Description:  "Standard on-chain proposal with simple FOR/AGAINST/ABSTAIN voting",
		ParseData:    parseStandardData,
		ParseResults: parseStandardResults,
		Tally:        TallyStandard,
	}
}

// ApprovalRules describes multi-choice voting with budget allocation.
func ApprovalRules() Rules {
	return Rules{
		Variant:      VariantApproval,
		DisplayName:  "Approval Voting",
		Description:  "Multi-choice voting for budget allocation and grant selection",
		ParseData:    parseApprovalData,
		ParseResults: parseStandardResults,
		Tally:        TallyApproval,
	}
}

// OptimisticRules describes veto-only proposals. They carry no quorum.
func OptimisticRules() Rules {
	return Rules{
		Variant:      VariantOptimistic,
		DisplayName:  "Optimistic Proposal",
		Description:  "Proposal that passes unless vetoed by sufficient against votes",
		QuorumBps:    &optimisticQuorumBps,
		ParseData:    parseStandardData,
		ParseResults: parseStandardResults,
		Tally:        TallyOptimistic,
	}
}
