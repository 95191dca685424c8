// Package memory is an in-process backend for development and tests. It
// implements the same ports as the SQLite repository and enforces the same
// predicate rules.
package memory

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"

	"eventfees/internal/core"
	"eventfees/internal/scope"
)

type Store struct {
	mu                sync.RWMutex
	institutions      map[core.InstitutionID]core.Institution
	eventInstitutions map[core.EventInstitution]struct{}
	masters           map[int64]core.EventMaster
	participants      []core.Participant
	entries           []core.ParticipantEntry
	teams             []core.TeamEntry
	registrations     []core.InstitutionRegistration
	transfers         []core.FundTransfer
	overrides         []core.LabelOverride
}

func New() *Store {
	return &Store{
		institutions:      map[core.InstitutionID]core.Institution{},
		eventInstitutions: map[core.EventInstitution]struct{}{},
		masters:           map[int64]core.EventMaster{},
	}
}

// NewFromFile builds a store seeded from a JSON dataset. An empty path yields
// an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	if path == "" {
		return s, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var ds core.Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	if err := s.Load(ds); err != nil {
		return nil, err
	}
	return s, nil
}

// Load appends every record in ds. Records referencing an unknown event
// master are rejected before anything is stored.
func (s *Store) Load(ds core.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := func(id int64) bool {
		if _, ok := s.masters[id]; ok {
			return true
		}
		return slices.ContainsFunc(ds.EventMasters, func(m core.EventMaster) bool { return m.ID == id })
	}
	for _, e := range ds.ParticipantEntries {
		if !known(e.EventMasterID) {
			return fmt.Errorf("participant entry %d: unknown event master %d", e.ParticipantID, e.EventMasterID)
		}
	}
	for _, t := range ds.TeamEntries {
		if !known(t.EventMasterID) {
			return fmt.Errorf("team entry %d: unknown event master %d", t.ID, t.EventMasterID)
		}
	}
	for _, r := range ds.Registrations {
		if !known(r.EventMasterID) {
			return fmt.Errorf("institution registration %d: unknown event master %d", r.ID, r.EventMasterID)
		}
	}

	for _, i := range ds.Institutions {
		s.institutions[i.ID] = i
	}
	for _, ei := range ds.EventInstitutions {
		s.eventInstitutions[ei] = struct{}{}
	}
	for _, m := range ds.EventMasters {
		s.masters[m.ID] = m
	}
	s.participants = append(s.participants, ds.Participants...)
	s.entries = append(s.entries, ds.ParticipantEntries...)
	s.teams = append(s.teams, ds.TeamEntries...)
	s.registrations = append(s.registrations, ds.Registrations...)
	s.transfers = append(s.transfers, ds.FundTransfers...)
	s.overrides = append(s.overrides, ds.LabelOverrides...)
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// SetTransferStatus changes the status of a stored fund transfer.
func (s *Store) SetTransferStatus(id core.TransferID, status core.Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transfers {
		if s.transfers[i].ID == id {
			s.transfers[i].Status = status
			return true
		}
	}
	return false
}

// SetParticipantStatus changes the status of a stored participant.
func (s *Store) SetParticipantStatus(id core.ParticipantID, status core.Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.participants {
		if s.participants[i].ID == id {
			s.participants[i].Status = status
			return true
		}
	}
	return false
}

func (s *Store) AggregateParticipantFees(ctx context.Context, key core.ScopeKey, counted []core.Status) (core.ParticipantAggregate, error) {
	var agg core.ParticipantAggregate
	if err := ctx.Err(); err != nil {
		return agg, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type pair struct {
		participant core.ParticipantID
		master      int64
	}
	seen := map[pair]struct{}{}
	for _, p := range s.participants {
		if p.EventID != key.EventID || p.InstitutionID != key.InstitutionID || !slices.Contains(counted, p.Status) {
			continue
		}
		agg.ParticipantCount++
		for _, e := range s.entries {
			if e.ParticipantID != p.ID {
				continue
			}
			k := pair{p.ID, e.EventMasterID}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			agg.Fees = agg.Fees.Add(e.Fee)
			if s.masters[e.EventMasterID].Kind == core.KindIndividual {
				agg.IndividualEventCount++
			}
		}
	}
	return agg, nil
}

func (s *Store) AggregateTeamEntryFees(ctx context.Context, key core.ScopeKey, counted []core.Status) (core.TeamEntryAggregate, error) {
	var agg core.TeamEntryAggregate
	if err := ctx.Err(); err != nil {
		return agg, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.teams {
		if t.EventID != key.EventID || t.InstitutionID != key.InstitutionID || !slices.Contains(counted, t.Status) {
			continue
		}
		m, ok := s.masters[t.EventMasterID]
		if !ok {
			continue
		}
		agg.Count++
		agg.Fees = agg.Fees.Add(m.Fee)
	}
	return agg, nil
}

func (s *Store) AggregateInstitutionEventFees(ctx context.Context, key core.ScopeKey, counted []core.Status) (core.InstitutionEventAggregate, error) {
	var agg core.InstitutionEventAggregate
	if err := ctx.Err(); err != nil {
		return agg, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.registrations {
		if r.EventID != key.EventID || r.InstitutionID != key.InstitutionID || !slices.Contains(counted, r.Status) {
			continue
		}
		m, ok := s.masters[r.EventMasterID]
		if !ok {
			continue
		}
		agg.Count++
		agg.Fees = agg.Fees.Add(m.Fee)
	}
	return agg, nil
}

// AggregateFundTransfers sums both buckets under one read lock so they are
// observed together.
func (s *Store) AggregateFundTransfers(ctx context.Context, key core.ScopeKey, buckets core.FundBuckets) (core.FundTransferAggregate, error) {
	var agg core.FundTransferAggregate
	if err := ctx.Err(); err != nil {
		return agg, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.transfers {
		if f.EventID != key.EventID || f.InstitutionID != key.InstitutionID {
			continue
		}
		if slices.Contains(buckets.Pending, f.Status) {
			agg.Pending = agg.Pending.Add(f.Amount)
		}
		if slices.Contains(buckets.Approved, f.Status) {
			agg.Approved = agg.Approved.Add(f.Amount)
		}
	}
	return agg, nil
}

func (s *Store) FetchResultLabelOverrides(ctx context.Context, eventID core.EventID) ([]core.LabelOverride, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.LabelOverride
	for _, o := range s.overrides {
		if o.EventID == eventID {
			out = append(out, o)
		}
	}
	slices.SortStableFunc(out, func(a, b core.LabelOverride) int {
		return cmp.Compare(a.SortOrder, b.SortOrder)
	})
	return out, nil
}

// ListInstitutions returns institutions taking part in an event matched by
// p, ordered by id. Supported fields: event_id, institution_id.
func (s *Store) ListInstitutions(ctx context.Context, p scope.Predicate) ([]core.Institution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[core.InstitutionID]struct{}{}
	var out []core.Institution
	for ei := range s.eventInstitutions {
		ok, err := p.Match(map[scope.Field]int64{
			scope.FieldEventID:       int64(ei.EventID),
			scope.FieldInstitutionID: int64(ei.InstitutionID),
		})
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		inst, found := s.institutions[ei.InstitutionID]
		if _, dup := seen[ei.InstitutionID]; dup || !found {
			continue
		}
		seen[ei.InstitutionID] = struct{}{}
		out = append(out, inst)
	}
	slices.SortFunc(out, func(a, b core.Institution) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// ListFundTransfers returns transfers matched by p, ordered by id. Supported
// fields: event_id, institution_id, record_id.
func (s *Store) ListFundTransfers(ctx context.Context, p scope.Predicate) ([]core.FundTransfer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.FundTransfer
	for _, f := range s.transfers {
		ok, err := p.Match(transferAttrs(f))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	slices.SortFunc(out, func(a, b core.FundTransfer) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// GetFundTransfer requires p to pin a record id.
func (s *Store) GetFundTransfer(ctx context.Context, p scope.Predicate) (core.FundTransfer, error) {
	if len(p.Values(scope.FieldRecordID)) == 0 {
		return core.FundTransfer{}, fmt.Errorf("%w: record lookup without %s", core.ErrUnsupportedPredicate, scope.FieldRecordID)
	}
	found, err := s.ListFundTransfers(ctx, p)
	if err != nil {
		return core.FundTransfer{}, err
	}
	if len(found) == 0 {
		return core.FundTransfer{}, core.ErrNotFound
	}
	return found[0], nil
}

func transferAttrs(f core.FundTransfer) map[scope.Field]int64 {
	return map[scope.Field]int64{
		scope.FieldEventID:       int64(f.EventID),
		scope.FieldInstitutionID: int64(f.InstitutionID),
		scope.FieldRecordID:      int64(f.ID),
	}
}
