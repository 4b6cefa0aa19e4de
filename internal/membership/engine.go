package membership

import "fmt"

// Engine evaluates tier transitions over an ordered tier catalog. Rank is
// the catalog position: lower rank means more benefits. Engine does no I/O.
type Engine struct {
	configs []TierConfig
	rank    map[Tier]int
}

// NewEngine builds an engine from configs ordered best tier first.
func NewEngine(configs []TierConfig) (*Engine, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("tier catalog is empty")
	}

	rank := make(map[Tier]int, len(configs))
	for i, c := range configs {
		if c.Tier == "" {
			return nil, fmt.Errorf("tier at position %d has no name", i)
		}
		if _, dup := rank[c.Tier]; dup {
			return nil, fmt.Errorf("duplicate tier %q", c.Tier)
		}
		rank[c.Tier] = i
	}

	return &Engine{configs: configs, rank: rank}, nil
}

// MustDefaultEngine returns an engine over DefaultTiers
func MustDefaultEngine() *Engine {
	e, err := NewEngine(DefaultTiers())
	if err != nil {
		panic(err)
	}
	return e
}

// Rank returns the position of t, false if t is unknown
func (e *Engine) Rank(t Tier) (int, bool) {
	r, ok := e.rank[t]
	return r, ok
}

// Known reports whether t belongs to the catalog
func (e *Engine) Known(t Tier) bool {
	_, ok := e.rank[t]
	return ok
}

// Config returns the catalog entry of t
func (e *Engine) Config(t Tier) (TierConfig, bool) {
	r, ok := e.rank[t]
	if !ok {
		return TierConfig{}, false
	}
	return e.configs[r], true
}

// Tiers lists the catalog, best first
func (e *Engine) Tiers() []Tier {
	out := make([]Tier, len(e.configs))
	for i, c := range e.configs {
		out[i] = c.Tier
	}
	return out
}

// IsUpgrade is true iff rank(to) < rank(from). Unknown tiers never upgrade.
func (e *Engine) IsUpgrade(from, to Tier) bool {
	rf, okFrom := e.rank[from]
	rt, okTo := e.rank[to]
	return okFrom && okTo && rt < rf
}

// IsDowngrade is true iff rank(to) > rank(from).
func (e *Engine) IsDowngrade(from, to Tier) bool {
	rf, okFrom := e.rank[from]
	rt, okTo := e.rank[to]
	return okFrom && okTo && rt > rf
}

// LostBenefits returns the benefits of from that to does not have, in the
// order they appear in from's list. Benefits are compared by ID.
func (e *Engine) LostBenefits(from, to Tier) []Benefit {
	if from == to {
		return []Benefit{}
	}
	fromCfg, ok := e.Config(from)
	if !ok {
		return []Benefit{}
	}
	toCfg, _ := e.Config(to)

	kept := make(map[string]struct{}, len(toCfg.Benefits))
	for _, b := range toCfg.Benefits {
		kept[b.ID] = struct{}{}
	}

	lost := []Benefit{}
	for _, b := range fromCfg.Benefits {
		if _, ok := kept[b.ID]; !ok {
			lost = append(lost, b)
		}
	}
	return lost
}
