package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"eventfees/internal/core"
)

// Import writes every record of ds in a single transaction.
func (r *SQLiteRepository) Import(ctx context.Context, ds core.Dataset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	inserts := []struct {
		table string
		rows  []goqu.Record
	}{
		{"institutions", institutionRows(ds.Institutions)},
		{"event_institutions", eventInstitutionRows(ds.EventInstitutions)},
		{"event_masters", eventMasterRows(ds.EventMasters)},
		{"participants", participantRows(ds.Participants)},
		{"participant_events", participantEntryRows(ds.ParticipantEntries)},
		{"team_entries", teamEntryRows(ds.TeamEntries)},
		{"institution_event_registrations", registrationRows(ds.Registrations)},
		{"fund_transfers", fundTransferRows(ds.FundTransfers)},
		{"result_label_overrides", labelOverrideRows(ds.LabelOverrides)},
	}
	for _, ins := range inserts {
		if err := r.insert(ctx, tx, ins.table, ins.rows); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) insert(ctx context.Context, tx *sql.Tx, table string, rows []goqu.Record) error {
	for _, row := range rows {
		query, args, err := r.builder.Insert(table).Rows(row).Prepared(true).ToSQL()
		if err != nil {
			return fmt.Errorf("build insert into %s: %w", table, err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return nil
}

func institutionRows(in []core.Institution) []goqu.Record {
	out := make([]goqu.Record, len(in))
	for i, v := range in {
		out[i] = goqu.Record{"id": int64(v.ID), "name": v.Name}
	}
	return out
}

func eventInstitutionRows(in []core.EventInstitution) []goqu.Record {
	out := make([]goqu.Record, len(in))
	for i, v := range in {
		out[i] = goqu.Record{"event_id": int64(v.EventID), "institution_id": int64(v.InstitutionID)}
	}
	return out
}

func eventMasterRows(in []core.EventMaster) []goqu.Record {
	out := make([]goqu.Record, len(in))
	for i, v := range in {
		out[i] = goqu.Record{
			"id":        v.ID,
			"event_id":  int64(v.EventID),
			"name":      v.Name,
			"kind":      string(v.Kind),
			"fee_cents": v.Fee.Cents,
		}
	}
	return out
}

func participantRows(in []core.Participant) []goqu.Record {
	out := make([]goqu.Record, len(in))
	for i, v := range in {
		out[i] = goqu.Record{
			"id":             int64(v.ID),
			"event_id":       int64(v.EventID),
			"institution_id": int64(v.InstitutionID),
			"name":           v.Name,
			"status":         string(v.Status),
		}
	}
	return out
}

func participantEntryRows(in []core.ParticipantEntry) []goqu.Record {
	out := make([]goqu.Record, len(in))
	for i, v := range in {
		out[i] = goqu.Record{
			"participant_id":  int64(v.ParticipantID),
			"event_master_id": v.EventMasterID,
			"fee_cents":       v.Fee.Cents,
		}
	}
	return out
}

func teamEntryRows(in []core.TeamEntry) []goqu.Record {
	out := make([]goqu.Record, len(in))
	for i, v := range in {
		out[i] = goqu.Record{
			"id":              v.ID,
			"event_id":        int64(v.EventID),
			"institution_id":  int64(v.InstitutionID),
			"event_master_id": v.EventMasterID,
			"name":            v.Name,
			"status":          string(v.Status),
		}
	}
	return out
}

func registrationRows(in []core.InstitutionRegistration) []goqu.Record {
	out := make([]goqu.Record, len(in))
	for i, v := range in {
		out[i] = goqu.Record{
			"id":              v.ID,
			"event_id":        int64(v.EventID),
			"institution_id":  int64(v.InstitutionID),
			"event_master_id": v.EventMasterID,
			"status":          string(v.Status),
		}
	}
	return out
}

func fundTransferRows(in []core.FundTransfer) []goqu.Record {
	out := make([]goqu.Record, len(in))
	for i, v := range in {
		out[i] = goqu.Record{
			"id":             int64(v.ID),
			"event_id":       int64(v.EventID),
			"institution_id": int64(v.InstitutionID),
			"amount_cents":   v.Amount.Cents,
			"reference":      v.Reference,
			"status":         string(v.Status),
		}
	}
	return out
}

func labelOverrideRows(in []core.LabelOverride) []goqu.Record {
	out := make([]goqu.Record, len(in))
	for i, v := range in {
		out[i] = goqu.Record{
			"event_id":   int64(v.EventID),
			"label_key":  v.Key,
			"label":      v.Label,
			"sort_order": v.SortOrder,
		}
	}
	return out
}
