package scope

import (
	"fmt"
	"strings"

	"eventfees/internal/core"
)

// Field names a column-independent attribute a predicate can constrain.
type Field string

const (
	FieldEventID       Field = "event_id"
	FieldInstitutionID Field = "institution_id"
	FieldRecordID      Field = "record_id"
)

// Clause is an equality constraint.
type Clause struct {
	Field Field
	Value int64
}

// Predicate is a conjunction of equality clauses. A predicate with matchNone set
// matches no row regardless of its clauses. The zero Predicate matches every
// row and is only produced for super admins without filters.
type Predicate struct {
	clauses   []Clause
	matchNone bool
}

// MatchNone returns a predicate that matches nothing.
func MatchNone() Predicate {
	return Predicate{matchNone: true}
}

func (p Predicate) and(f Field, v int64) Predicate {
	clauses := make([]Clause, 0, len(p.clauses)+1)
	clauses = append(clauses, p.clauses...)
	clauses = append(clauses, Clause{Field: f, Value: v})
	return Predicate{clauses: clauses, matchNone: p.matchNone}
}

// Clauses returns the conjunctive clauses.
func (p Predicate) Clauses() []Clause {
	out := make([]Clause, len(p.clauses))
	copy(out, p.clauses)
	return out
}

func (p Predicate) MatchesNothing() bool {
	return p.matchNone
}

// Values returns the distinct values constrained for f.
func (p Predicate) Values(f Field) []int64 {
	var out []int64
	for _, c := range p.clauses {
		if c.Field != f {
			continue
		}
		seen := false
		for _, v := range out {
			if v == c.Value {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, c.Value)
		}
	}
	return out
}

// Satisfiable reports whether some row could match: the predicate is not
// match-none and no field is pinned to two different values.
func (p Predicate) Satisfiable() bool {
	if p.matchNone {
		return false
	}
	for _, f := range []Field{FieldEventID, FieldInstitutionID, FieldRecordID} {
		if len(p.Values(f)) > 1 {
			return false
		}
	}
	return true
}

// Pinned returns the single value f is constrained to.
func (p Predicate) Pinned(f Field) (int64, bool) {
	if !p.Satisfiable() {
		return 0, false
	}
	vals := p.Values(f)
	if len(vals) != 1 {
		return 0, false
	}
	return vals[0], true
}

// Key returns the (event, institution) pair the predicate pins, if it pins
// exactly one.
func (p Predicate) Key() (core.ScopeKey, bool) {
	ev, ok := p.Pinned(FieldEventID)
	if !ok {
		return core.ScopeKey{}, false
	}
	inst, ok := p.Pinned(FieldInstitutionID)
	if !ok {
		return core.ScopeKey{}, false
	}
	return core.ScopeKey{EventID: core.EventID(ev), InstitutionID: core.InstitutionID(inst)}, true
}

// Match evaluates the predicate against attribute values. It fails with
// ErrUnsupportedPredicate if a clause names an attribute the row does not
// carry, so callers cannot accidentally widen access by dropping a clause.
func (p Predicate) Match(attrs map[Field]int64) (bool, error) {
	for _, c := range p.clauses {
		v, ok := attrs[c.Field]
		if !ok {
			return false, fmt.Errorf("%w: %s", core.ErrUnsupportedPredicate, c.Field)
		}
		if v != c.Value {
			return false, nil
		}
	}
	return !p.matchNone, nil
}

func (p Predicate) String() string {
	if p.matchNone {
		return "FALSE"
	}
	if len(p.clauses) == 0 {
		return "TRUE"
	}
	parts := make([]string, len(p.clauses))
	for i, c := range p.clauses {
		parts[i] = fmt.Sprintf("%s = %d", c.Field, c.Value)
	}
	return strings.Join(parts, " AND ")
}
