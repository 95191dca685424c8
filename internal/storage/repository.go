package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"

	"eventfees/internal/core"
	"eventfees/internal/scope"

	_ "modernc.org/sqlite"
)

const dialectSQLite = "sqlite3"

// SQLiteRepository reads registration records from SQLite. Every query is
// built with goqu from the status policy and scope predicate it is given.
type SQLiteRepository struct {
	db      *sql.DB
	builder goqu.DialectWrapper
	version uint
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("SQLite schema ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		builder: goqu.Dialect(dialectSQLite),
		version: version,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SchemaVersion is the migration version applied at startup.
func (r *SQLiteRepository) SchemaVersion() uint {
	return r.version
}

// AggregateParticipantFees counts distinct counted participants, distinct
// (participant, individual event) pairs and sums their entry fees.
func (r *SQLiteRepository) AggregateParticipantFees(ctx context.Context, key core.ScopeKey, counted []core.Status) (core.ParticipantAggregate, error) {
	individualEntry := goqu.Case().
		When(goqu.I("em.kind").Eq(string(core.KindIndividual)), goqu.I("pe.id"))

	ds := r.builder.
		From(goqu.T("participants").As("p")).
		LeftJoin(goqu.T("participant_events").As("pe"), goqu.On(goqu.I("pe.participant_id").Eq(goqu.I("p.id")))).
		LeftJoin(goqu.T("event_masters").As("em"), goqu.On(goqu.I("em.id").Eq(goqu.I("pe.event_master_id")))).
		Select(
			goqu.COUNT(goqu.DISTINCT(goqu.I("p.id"))),
			goqu.COUNT(goqu.DISTINCT(individualEntry)),
			goqu.COALESCE(goqu.SUM(goqu.I("pe.fee_cents")), 0),
		).
		Where(
			goqu.I("p.event_id").Eq(int64(key.EventID)),
			goqu.I("p.institution_id").Eq(int64(key.InstitutionID)),
			statusIn(goqu.I("p.status"), counted),
		)

	var agg core.ParticipantAggregate
	var fees int64
	if err := r.queryRow(ctx, "participants", ds, &agg.ParticipantCount, &agg.IndividualEventCount, &fees); err != nil {
		return core.ParticipantAggregate{}, err
	}
	agg.Fees = core.Cents(fees)
	return agg, nil
}

// AggregateTeamEntryFees sums the fee of the event master each counted team
// entry targets.
func (r *SQLiteRepository) AggregateTeamEntryFees(ctx context.Context, key core.ScopeKey, counted []core.Status) (core.TeamEntryAggregate, error) {
	count, fees, err := r.countMasterFees(ctx, "team_entries", key, counted)
	if err != nil {
		return core.TeamEntryAggregate{}, err
	}
	return core.TeamEntryAggregate{Count: count, Fees: core.Cents(fees)}, nil
}

func (r *SQLiteRepository) AggregateInstitutionEventFees(ctx context.Context, key core.ScopeKey, counted []core.Status) (core.InstitutionEventAggregate, error) {
	count, fees, err := r.countMasterFees(ctx, "institution_event_registrations", key, counted)
	if err != nil {
		return core.InstitutionEventAggregate{}, err
	}
	return core.InstitutionEventAggregate{Count: count, Fees: core.Cents(fees)}, nil
}

func (r *SQLiteRepository) countMasterFees(ctx context.Context, table string, key core.ScopeKey, counted []core.Status) (int64, int64, error) {
	ds := r.builder.
		From(goqu.T(table).As("t")).
		Join(goqu.T("event_masters").As("em"), goqu.On(goqu.I("em.id").Eq(goqu.I("t.event_master_id")))).
		Select(
			goqu.COUNT(goqu.I("t.id")),
			goqu.COALESCE(goqu.SUM(goqu.I("em.fee_cents")), 0),
		).
		Where(
			goqu.I("t.event_id").Eq(int64(key.EventID)),
			goqu.I("t.institution_id").Eq(int64(key.InstitutionID)),
			statusIn(goqu.I("t.status"), counted),
		)

	var count, fees int64
	if err := r.queryRow(ctx, table, ds, &count, &fees); err != nil {
		return 0, 0, err
	}
	return count, fees, nil
}

// AggregateFundTransfers computes both buckets as conditional sums of one
// statement.
func (r *SQLiteRepository) AggregateFundTransfers(ctx context.Context, key core.ScopeKey, buckets core.FundBuckets) (core.FundTransferAggregate, error) {
	bucketSum := func(statuses []core.Status) exp.SQLFunctionExpression {
		return goqu.COALESCE(goqu.SUM(goqu.Case().
			When(statusIn(goqu.I("f.status"), statuses), goqu.I("f.amount_cents")).
			Else(0)), 0)
	}

	ds := r.builder.
		From(goqu.T("fund_transfers").As("f")).
		Select(bucketSum(buckets.Pending), bucketSum(buckets.Approved)).
		Where(
			goqu.I("f.event_id").Eq(int64(key.EventID)),
			goqu.I("f.institution_id").Eq(int64(key.InstitutionID)),
		)

	var pending, approved int64
	if err := r.queryRow(ctx, "fund_transfers", ds, &pending, &approved); err != nil {
		return core.FundTransferAggregate{}, err
	}
	return core.FundTransferAggregate{Pending: core.Cents(pending), Approved: core.Cents(approved)}, nil
}

// FetchResultLabelOverrides returns overrides in ascending sort order.
func (r *SQLiteRepository) FetchResultLabelOverrides(ctx context.Context, eventID core.EventID) ([]core.LabelOverride, error) {
	ds := r.builder.
		From("result_label_overrides").
		Select("event_id", "label_key", "label", "sort_order").
		Where(goqu.C("event_id").Eq(int64(eventID))).
		Order(goqu.C("sort_order").Asc(), goqu.C("id").Asc())

	rows, err := r.query(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("fetch result label overrides: %w", err)
	}
	defer rows.Close()

	var out []core.LabelOverride
	for rows.Next() {
		var o core.LabelOverride
		if err := rows.Scan(&o.EventID, &o.Key, &o.Label, &o.SortOrder); err != nil {
			return nil, fmt.Errorf("scan result label override: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

var institutionColumns = map[scope.Field]exp.IdentifierExpression{
	scope.FieldEventID:       goqu.I("ei.event_id"),
	scope.FieldInstitutionID: goqu.I("ei.institution_id"),
}

// ListInstitutions returns institutions taking part in an event matched by p.
func (r *SQLiteRepository) ListInstitutions(ctx context.Context, p scope.Predicate) ([]core.Institution, error) {
	where, err := predicateWhere(p, institutionColumns)
	if err != nil {
		return nil, err
	}

	ds := r.builder.
		From(goqu.T("event_institutions").As("ei")).
		Join(goqu.T("institutions").As("i"), goqu.On(goqu.I("i.id").Eq(goqu.I("ei.institution_id")))).
		Select(goqu.I("i.id"), goqu.I("i.name")).
		Distinct().
		Order(goqu.I("i.id").Asc())
	if len(where) > 0 {
		ds = ds.Where(where...)
	}

	rows, err := r.query(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	defer rows.Close()

	var out []core.Institution
	for rows.Next() {
		var i core.Institution
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, fmt.Errorf("scan institution: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

var transferColumns = map[scope.Field]exp.IdentifierExpression{
	scope.FieldEventID:       goqu.I("f.event_id"),
	scope.FieldInstitutionID: goqu.I("f.institution_id"),
	scope.FieldRecordID:      goqu.I("f.id"),
}

func (r *SQLiteRepository) ListFundTransfers(ctx context.Context, p scope.Predicate) ([]core.FundTransfer, error) {
	where, err := predicateWhere(p, transferColumns)
	if err != nil {
		return nil, err
	}

	ds := r.builder.
		From(goqu.T("fund_transfers").As("f")).
		Select(
			goqu.I("f.id"), goqu.I("f.event_id"), goqu.I("f.institution_id"),
			goqu.I("f.amount_cents"), goqu.I("f.reference"), goqu.I("f.status"),
		).
		Order(goqu.I("f.id").Asc())
	if len(where) > 0 {
		ds = ds.Where(where...)
	}

	rows, err := r.query(ctx, ds)
	if err != nil {
		return nil, fmt.Errorf("list fund transfers: %w", err)
	}
	defer rows.Close()

	var out []core.FundTransfer
	for rows.Next() {
		var f core.FundTransfer
		var cents int64
		if err := rows.Scan(&f.ID, &f.EventID, &f.InstitutionID, &cents, &f.Reference, &f.Status); err != nil {
			return nil, fmt.Errorf("scan fund transfer: %w", err)
		}
		f.Amount = core.Cents(cents)
		out = append(out, f)
	}
	return out, rows.Err()
}

// GetFundTransfer requires p to pin a record id.
func (r *SQLiteRepository) GetFundTransfer(ctx context.Context, p scope.Predicate) (core.FundTransfer, error) {
	if len(p.Values(scope.FieldRecordID)) == 0 {
		return core.FundTransfer{}, fmt.Errorf("%w: record lookup without %s", core.ErrUnsupportedPredicate, scope.FieldRecordID)
	}
	found, err := r.ListFundTransfers(ctx, p)
	if err != nil {
		return core.FundTransfer{}, err
	}
	if len(found) == 0 {
		return core.FundTransfer{}, core.ErrNotFound
	}
	return found[0], nil
}

func (r *SQLiteRepository) queryRow(ctx context.Context, source string, ds *goqu.SelectDataset, dest ...any) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build %s aggregation: %w", source, err)
	}
	slog.DebugContext(ctx, "Running aggregation", "source", source, "sql", query)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(dest...); err != nil {
		return fmt.Errorf("aggregate %s: %w", source, err)
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, ds *goqu.SelectDataset) (*sql.Rows, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.db.QueryContext(ctx, query, args...)
}

// statusIn compiles a status filter. An empty list matches nothing.
func statusIn(col exp.IdentifierExpression, statuses []core.Status) exp.Expression {
	if len(statuses) == 0 {
		return goqu.L("1 = 0")
	}
	vals := make([]string, len(statuses))
	for i, s := range statuses {
		vals[i] = string(s)
	}
	return col.In(vals)
}

// predicateWhere translates a scope predicate into WHERE expressions over the
// given columns. Fields without a column are rejected, never dropped.
func predicateWhere(p scope.Predicate, cols map[scope.Field]exp.IdentifierExpression) ([]exp.Expression, error) {
	clauses := p.Clauses()
	where := make([]exp.Expression, 0, len(clauses)+1)
	for _, c := range clauses {
		col, ok := cols[c.Field]
		if !ok {
			return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedPredicate, c.Field)
		}
		where = append(where, col.Eq(c.Value))
	}
	if p.MatchesNothing() {
		where = append(where, goqu.L("1 = 0"))
	}
	return where, nil
}
