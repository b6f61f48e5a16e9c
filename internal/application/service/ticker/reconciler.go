package ticker

import (
	entity "main/internal/domain/entity/ticker"
)

// Plan maps each account to the ordered set of instruments streamed on it,
// plus a per-account token lookup. A token appears in at most one account's
// assignment and an assignment never exceeds the configured capacity.
type Plan struct {
	Assignments map[string][]entity.Instrument
	TokenMaps   map[string]map[int64]entity.Instrument
}

// NewPlan returns an empty plan.
func NewPlan() *Plan {
	return &Plan{
		Assignments: make(map[string][]entity.Instrument),
		TokenMaps:   make(map[string]map[int64]entity.Instrument),
	}
}

// Owner returns the account currently streaming the token, if any.
func (p *Plan) Owner(token int64) (string, bool) {
	for account, tokens := range p.TokenMaps {
		if _, ok := tokens[token]; ok {
			return account, true
		}
	}
	return "", false
}

// Add appends the instrument to the account's assignment and token map.
func (p *Plan) Add(account string, inst entity.Instrument) {
	p.Assignments[account] = append(p.Assignments[account], inst)
	if p.TokenMaps[account] == nil {
		p.TokenMaps[account] = make(map[int64]entity.Instrument)
	}
	p.TokenMaps[account][inst.Token] = inst
}

// Remove deletes the token from the account's assignment and token map.
func (p *Plan) Remove(account string, token int64) {
	assigned := p.Assignments[account]
	for i := range assigned {
		if assigned[i].Token == token {
			p.Assignments[account] = append(assigned[:i:i], assigned[i+1:]...)
			break
		}
	}
	delete(p.TokenMaps[account], token)
}

// Size returns the total number of assigned instruments.
func (p *Plan) Size() int {
	total := 0
	for _, assigned := range p.Assignments {
		total += len(assigned)
	}
	return total
}

// BuildAssignments bin-packs the desired instrument set across accounts,
// filling each account up to capacity before opening the next. The result is
// deterministic for identical inputs: instruments keep their input order and
// accounts are filled in input order. Instruments that do not fit anywhere
// are left unassigned. Empty inputs produce an empty plan.
func BuildAssignments(desired []entity.Instrument, accounts []string, capacity int) *Plan {
	plan := NewPlan()
	if len(desired) == 0 || len(accounts) == 0 || capacity <= 0 {
		return plan
	}

	seen := make(map[int64]struct{}, len(desired))
	idx := 0
	for _, inst := range desired {
		if _, dup := seen[inst.Token]; dup {
			continue
		}
		for idx < len(accounts) && len(plan.Assignments[accounts[idx]]) >= capacity {
			idx++
		}
		if idx >= len(accounts) {
			break
		}
		plan.Add(accounts[idx], inst)
		seen[inst.Token] = struct{}{}
	}
	return plan
}

// FindAccountWithCapacity returns the first account whose assignment size is
// below capacity, in account input order.
func FindAccountWithCapacity(plan *Plan, accounts []string, capacity int) (string, bool) {
	if plan == nil || capacity <= 0 {
		return "", false
	}
	for _, account := range accounts {
		if len(plan.Assignments[account]) < capacity {
			return account, true
		}
	}
	return "", false
}
