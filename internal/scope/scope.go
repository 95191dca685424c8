// Package scope turns a caller identity into the mandatory filter predicate
// that every participant, entry, registration and transfer lookup must apply.
//
// Each role is its own Scope variant carrying exactly the attributes that role
// needs. Translate is the single place variants become predicates; unknown
// variants translate to a predicate that matches nothing.
package scope

import (
	"strings"

	"eventfees/internal/core"
)

type Role string

const (
	RoleSuperAdmin       Role = "super_admin"
	RoleEventAdmin       Role = "event_admin"
	RoleInstitutionAdmin Role = "institution_admin"
	RoleEventStaff       Role = "event_staff"
)

// ParseRole normalizes a role name. Unrecognized names are returned as-is and
// resolve to a match-nothing scope.
func ParseRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// Identity is the caller as established by the session layer.
type Identity struct {
	Role          Role
	EventID       *core.EventID
	InstitutionID *core.InstitutionID
}

// Filters are optional, caller-supplied narrowing filters.
type Filters struct {
	EventID       *core.EventID
	InstitutionID *core.InstitutionID
	RecordID      *int64
}

// Scope is the sealed set of per-role scopes.
type Scope interface {
	Role() Role
	isScope()
}

type SuperAdmin struct{}

type EventAdmin struct {
	EventID core.EventID
}

type EventStaff struct {
	EventID core.EventID
}

type InstitutionAdmin struct {
	InstitutionID core.InstitutionID
}

type unrecognized struct {
	role Role
}

func (SuperAdmin) Role() Role       { return RoleSuperAdmin }
func (EventAdmin) Role() Role       { return RoleEventAdmin }
func (EventStaff) Role() Role       { return RoleEventStaff }
func (InstitutionAdmin) Role() Role { return RoleInstitutionAdmin }
func (u unrecognized) Role() Role   { return u.role }

func (SuperAdmin) isScope()       {}
func (EventAdmin) isScope()       {}
func (EventStaff) isScope()       {}
func (InstitutionAdmin) isScope() {}
func (unrecognized) isScope()     {}

// System is the scope used by internal jobs acting on behalf of the platform.
func System() Scope {
	return SuperAdmin{}
}

// For builds the scope variant for an identity. A role missing the context it
// requires is a *core.ScopeError.
func For(id Identity) (Scope, error) {
	switch id.Role {
	case RoleSuperAdmin:
		return SuperAdmin{}, nil
	case RoleEventAdmin:
		if id.EventID == nil {
			return nil, &core.ScopeError{Role: string(id.Role), Missing: "event_id"}
		}
		return EventAdmin{EventID: *id.EventID}, nil
	case RoleEventStaff:
		if id.EventID == nil {
			return nil, &core.ScopeError{Role: string(id.Role), Missing: "event_id"}
		}
		return EventStaff{EventID: *id.EventID}, nil
	case RoleInstitutionAdmin:
		if id.InstitutionID == nil {
			return nil, &core.ScopeError{Role: string(id.Role), Missing: "institution_id"}
		}
		return InstitutionAdmin{InstitutionID: *id.InstitutionID}, nil
	default:
		return unrecognized{role: id.Role}, nil
	}
}

// Translate produces the predicate for s narrowed by f.
//
// Institution admins are always pinned to their own institution; a requested
// institution filter is discarded, never trusted. Event roles are pinned to
// their event and may narrow to one institution. Super admins get only the
// filters they supply.
func Translate(s Scope, f Filters) Predicate {
	var p Predicate

	switch s := s.(type) {
	case SuperAdmin:
		p = withEvent(p, f.EventID)
		p = withInstitution(p, f.InstitutionID)
	case EventAdmin:
		p = p.and(FieldEventID, int64(s.EventID))
		p = withEvent(p, f.EventID)
		p = withInstitution(p, f.InstitutionID)
	case EventStaff:
		p = p.and(FieldEventID, int64(s.EventID))
		p = withEvent(p, f.EventID)
		p = withInstitution(p, f.InstitutionID)
	case InstitutionAdmin:
		p = p.and(FieldInstitutionID, int64(s.InstitutionID))
		p = withEvent(p, f.EventID)
	default:
		return MatchNone()
	}

	if f.RecordID != nil {
		p = p.and(FieldRecordID, *f.RecordID)
	}
	return p
}

// Resolve is For followed by Translate.
func Resolve(id Identity, f Filters) (Predicate, error) {
	s, err := For(id)
	if err != nil {
		return Predicate{}, err
	}
	return Translate(s, f), nil
}

func withEvent(p Predicate, id *core.EventID) Predicate {
	if id == nil {
		return p
	}
	return p.and(FieldEventID, int64(*id))
}

func withInstitution(p Predicate, id *core.InstitutionID) Predicate {
	if id == nil {
		return p
	}
	return p.and(FieldInstitutionID, int64(*id))
}
