package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"eventfees/internal/amqp"
	"eventfees/internal/backend"
	"eventfees/internal/core"
	"eventfees/internal/fixtures"
	"eventfees/internal/log"
	"eventfees/internal/memory"
	"eventfees/internal/metrics"
	"eventfees/internal/services"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []*amqp.RecomputeMessage
	err      error
}

func (p *fakePublisher) PublishRecompute(_ context.Context, msg *amqp.RecomputeMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("database is closed") }

// brokenStore fails the fund transfer aggregation.
type brokenStore struct {
	*memory.Store
}

func (brokenStore) AggregateFundTransfers(context.Context, core.ScopeKey, core.FundBuckets) (core.FundTransferAggregate, error) {
	return core.FundTransferAggregate{}, errors.New("disk I/O error")
}

type ServerSuite struct {
	suite.Suite
	store     *memory.Store
	publisher *fakePublisher
	server    *Server
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.store = memory.New()
	s.Require().NoError(s.store.Load(fixtures.Reconciliation()))
	s.publisher = &fakePublisher{}
	s.server = s.newServer(s.store, Options{Publisher: s.publisher, Readiness: s.store})
}

func (s *ServerSuite) TearDownTest() {
	_ = s.server.Shutdown(context.Background())
}

func (s *ServerSuite) newServer(b backend.Backend, opts Options) *Server {
	logger := log.Discard()
	opts.Reconciler = services.NewReconciler(
		services.NewFeeAggregator(b, core.DefaultStatusPolicy(), nil, logger),
		services.NewLabelResolver(b, nil, logger),
		b, b,
		services.ReconcilerConfig{QueryTimeout: time.Second, ReportConcurrency: 2},
		nil,
		logger,
	)
	opts.Logger = logger
	return NewServer(":0", opts)
}

type caller map[string]string

func superAdmin() caller {
	return caller{HeaderCallerRole: "super_admin"}
}

func eventAdmin(id core.EventID) caller {
	return caller{HeaderCallerRole: "event_admin", HeaderCallerEventID: strconv.FormatInt(int64(id), 10)}
}

func institutionAdmin(id core.InstitutionID) caller {
	return caller{HeaderCallerRole: "institution_admin", HeaderCallerInstitutionID: strconv.FormatInt(int64(id), 10)}
}

func (s *ServerSuite) do(srv *Server, method, path string, who caller, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range who {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (s *ServerSuite) decode(rr *httptest.ResponseRecorder, v any) {
	s.Require().Equal("application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), v))
}

func (s *ServerSuite) TestHealthAndReadiness() {
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := s.do(s.server, http.MethodGet, path, nil, "")
		s.Equal(http.StatusOK, rr.Code, path)
	}

	down := s.newServer(s.store, Options{Readiness: downPinger{}})
	defer down.Shutdown(context.Background())
	rr := s.do(down, http.MethodGet, "/readyz", nil, "")
	s.Equal(http.StatusServiceUnavailable, rr.Code)
}

func (s *ServerSuite) TestSnapshot() {
	rr := s.do(s.server, http.MethodGet, "/api/events/1/institutions/10/snapshot", superAdmin(), "")
	s.Require().Equal(http.StatusOK, rr.Code)

	var snap map[string]any
	s.decode(rr, &snap)
	s.Equal(float64(fixtures.Event), snap["event_id"])
	s.Equal(float64(fixtures.North), snap["institution_id"])
	s.Equal("1000.00", snap["total_fee_due"])
	s.Equal("800.00", snap["balance"])
	s.Equal(false, snap["dues_cleared"])
	s.Equal(core.StatusPolicyVersion, snap["policy_version"])
	s.Equal("nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func (s *ServerSuite) TestSnapshotInstitutionAdminIsPinnedToOwnInstitution() {
	rr := s.do(s.server, http.MethodGet, "/api/events/1/institutions/10/snapshot", institutionAdmin(fixtures.River), "")
	s.Require().Equal(http.StatusOK, rr.Code)

	var snap core.FinancialSnapshot
	s.decode(rr, &snap)
	s.Equal(fixtures.River, snap.InstitutionID)
	s.Equal(core.Cents(fixtures.RiverBalance), snap.Balance)
}

func (s *ServerSuite) TestSnapshotErrors() {
	tests := []struct {
		name   string
		path   string
		who    caller
		status int
		body   string
	}{
		{"missing identity", "/api/events/1/institutions/10/snapshot", nil, http.StatusUnauthorized, "missing caller identity"},
		{"event admin without event", "/api/events/1/institutions/10/snapshot", caller{HeaderCallerRole: "event_admin"}, http.StatusForbidden, "caller identity incomplete"},
		{"event admin of other event", "/api/events/1/institutions/10/snapshot", eventAdmin(fixtures.OtherEvent), http.StatusNotFound, "not found"},
		{"institution admin outside event", "/api/events/2/institutions/20/snapshot", institutionAdmin(fixtures.River), http.StatusNotFound, "not found"},
		{"unknown role", "/api/events/1/institutions/10/snapshot", caller{HeaderCallerRole: "auditor"}, http.StatusNotFound, "not found"},
		{"bad event id", "/api/events/abc/institutions/10/snapshot", superAdmin(), http.StatusBadRequest, "invalid event id"},
		{"bad institution id", "/api/events/1/institutions/0/snapshot", superAdmin(), http.StatusBadRequest, "invalid institution id"},
		{"bad identity header", "/api/events/1/institutions/10/snapshot", caller{HeaderCallerRole: "event_admin", HeaderCallerEventID: "x"}, http.StatusBadRequest, "invalid X-Caller-Event-ID header"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			rr := s.do(s.server, http.MethodGet, tt.path, tt.who, "")
			s.Equal(tt.status, rr.Code)

			var body errorBody
			s.decode(rr, &body)
			s.Equal(tt.body, body.Error)
		})
	}
}

func (s *ServerSuite) TestSnapshotDataAccessFailure() {
	srv := s.newServer(brokenStore{Store: s.store}, Options{})
	defer srv.Shutdown(context.Background())

	rr := s.do(srv, http.MethodGet, "/api/events/1/institutions/10/snapshot", superAdmin(), "")
	s.Equal(http.StatusServiceUnavailable, rr.Code)
	s.JSONEq(`{"error":"unable to compute"}`, rr.Body.String())
}

func (s *ServerSuite) TestEventReport() {
	rr := s.do(s.server, http.MethodGet, "/api/events/1/report", eventAdmin(fixtures.Event), "")
	s.Require().Equal(http.StatusOK, rr.Code)

	var report services.EventReport
	s.decode(rr, &report)
	s.Require().Len(report.Rows, 2)
	s.Equal(fixtures.North, report.Rows[0].Institution.ID)
	s.Equal(fixtures.River, report.Rows[1].Institution.ID)
	s.Equal(core.Cents(fixtures.NorthBalance+fixtures.RiverBalance), report.Totals.Balance)

	rr = s.do(s.server, http.MethodGet, "/api/events/1/report", institutionAdmin(fixtures.River), "")
	s.Require().Equal(http.StatusOK, rr.Code)
	report = services.EventReport{}
	s.decode(rr, &report)
	s.Require().Len(report.Rows, 1)
	s.Equal(fixtures.River, report.Rows[0].Institution.ID)
}

func (s *ServerSuite) TestEventReportFailsAsAWhole() {
	srv := s.newServer(brokenStore{Store: s.store}, Options{})
	defer srv.Shutdown(context.Background())

	rr := s.do(srv, http.MethodGet, "/api/events/1/report", superAdmin(), "")
	s.Equal(http.StatusServiceUnavailable, rr.Code)
	s.NotContains(rr.Body.String(), "rows")
}

func (s *ServerSuite) TestFundTransfers() {
	rr := s.do(s.server, http.MethodGet, "/api/events/1/institutions/10/fund-transfers", institutionAdmin(fixtures.North), "")
	s.Require().Equal(http.StatusOK, rr.Code)

	var list transfersResponse
	s.decode(rr, &list)
	s.Len(list.Transfers, 3)
	for _, tr := range list.Transfers {
		s.Equal(fixtures.North, tr.InstitutionID)
		s.Equal(fixtures.Event, tr.EventID)
	}

	rr = s.do(s.server, http.MethodGet, "/api/events/1/institutions/10/fund-transfers/1", institutionAdmin(fixtures.North), "")
	s.Require().Equal(http.StatusOK, rr.Code)
	var transfer core.FundTransfer
	s.decode(rr, &transfer)
	s.Equal(fixtures.NorthApproved, transfer.ID)
	s.Equal("TRX-1001", transfer.Reference)

	// River's transfer is invisible to North even when addressed directly
	rr = s.do(s.server, http.MethodGet, "/api/events/1/institutions/20/fund-transfers/4", institutionAdmin(fixtures.North), "")
	s.Equal(http.StatusNotFound, rr.Code)

	rr = s.do(s.server, http.MethodGet, "/api/events/1/institutions/10/fund-transfers/abc", superAdmin(), "")
	s.Equal(http.StatusBadRequest, rr.Code)
}

func (s *ServerSuite) TestFundTransfersEmptyListIsArray() {
	rr := s.do(s.server, http.MethodGet, "/api/events/2/institutions/20/fund-transfers", superAdmin(), "")
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), `"transfers":[]`)
}

func (s *ServerSuite) TestResultLabels() {
	rr := s.do(s.server, http.MethodGet, "/api/events/1/result-labels", eventAdmin(fixtures.Event), "")
	s.Require().Equal(http.StatusOK, rr.Code)

	var body struct {
		EventID core.EventID       `json:"event_id"`
		Labels  []core.ResultLabel `json:"labels"`
	}
	s.decode(rr, &body)
	s.Require().Len(body.Labels, core.DefaultResultLabels().Len())
	s.Equal(core.ResultLabel{Key: "first_place", Label: "Gold Medal"}, body.Labels[0])
	s.Equal(core.ResultLabel{Key: "second_place", Label: "Silver"}, body.Labels[1])

	rr = s.do(s.server, http.MethodGet, "/api/events/1/result-labels", eventAdmin(fixtures.OtherEvent), "")
	s.Equal(http.StatusNotFound, rr.Code)
}

func (s *ServerSuite) TestRecompute() {
	rr := s.do(s.server, http.MethodPost, "/api/events/1/institutions/10/recompute", institutionAdmin(fixtures.North), `{"reason":"fund_transfer_approved"}`)
	s.Require().Equal(http.StatusAccepted, rr.Code)
	s.JSONEq(`{"event_id":1,"institution_id":10,"status":"queued"}`, rr.Body.String())

	s.Require().Len(s.publisher.messages, 1)
	s.Equal(int64(fixtures.Event), s.publisher.messages[0].EventID)
	s.Equal(int64(fixtures.North), s.publisher.messages[0].InstitutionID)
	s.Equal("fund_transfer_approved", s.publisher.messages[0].Reason)
}

func (s *ServerSuite) TestRecomputeDefaultsReasonAndPinsInstitution() {
	rr := s.do(s.server, http.MethodPost, "/api/events/1/institutions/10/recompute", institutionAdmin(fixtures.River), "")
	s.Require().Equal(http.StatusAccepted, rr.Code)

	s.Require().Len(s.publisher.messages, 1)
	s.Equal(int64(fixtures.River), s.publisher.messages[0].InstitutionID)
	s.Equal("manual", s.publisher.messages[0].Reason)
}

func (s *ServerSuite) TestRecomputeRejections() {
	rr := s.do(s.server, http.MethodPost, "/api/events/1/institutions/10/recompute", eventAdmin(fixtures.OtherEvent), "")
	s.Equal(http.StatusNotFound, rr.Code)

	rr = s.do(s.server, http.MethodPost, "/api/events/1/institutions/10/recompute", superAdmin(), `{"reason":`)
	s.Equal(http.StatusBadRequest, rr.Code)
	s.Empty(s.publisher.messages)

	s.publisher.err = errors.New("circuit breaker is open")
	rr = s.do(s.server, http.MethodPost, "/api/events/1/institutions/10/recompute", superAdmin(), "")
	s.Equal(http.StatusServiceUnavailable, rr.Code)

	noQueue := s.newServer(s.store, Options{})
	defer noQueue.Shutdown(context.Background())
	rr = s.do(noQueue, http.MethodPost, "/api/events/1/institutions/10/recompute", superAdmin(), "")
	s.Equal(http.StatusServiceUnavailable, rr.Code)
	s.JSONEq(`{"error":"recompute queue unavailable"}`, rr.Body.String())
}

func (s *ServerSuite) TestRecomputeIsRateLimited() {
	var last int
	for i := 0; i <= requestsPerMinute; i++ {
		rr := s.do(s.server, http.MethodPost, "/api/events/1/institutions/10/recompute", superAdmin(), "")
		last = rr.Code
	}
	s.Equal(http.StatusTooManyRequests, last)
	s.Len(s.publisher.messages, requestsPerMinute)
}

func (s *ServerSuite) TestMetricsEndpoint() {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.IncrementLabelFallback()

	srv := s.newServer(s.store, Options{Gatherer: reg})
	defer srv.Shutdown(context.Background())

	rr := s.do(srv, http.MethodGet, "/metrics", nil, "")
	s.Require().Equal(http.StatusOK, rr.Code)
	s.Contains(rr.Body.String(), "eventfees_label_override_fallbacks_total 1")

	rr = s.do(s.server, http.MethodGet, "/metrics", nil, "")
	s.Equal(http.StatusNotFound, rr.Code)
}

func (s *ServerSuite) TestUnknownRoutes() {
	rr := s.do(s.server, http.MethodGet, "/api/nowhere", superAdmin(), "")
	s.Equal(http.StatusNotFound, rr.Code)

	rr = s.do(s.server, http.MethodDelete, "/api/events/1/institutions/10/snapshot", superAdmin(), "")
	s.Equal(http.StatusMethodNotAllowed, rr.Code)
}
