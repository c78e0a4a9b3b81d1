package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mleite/autofund-backend/internal/adapter/repository/memory"
	"github.com/mleite/autofund-backend/internal/domain"
	"github.com/mleite/autofund-backend/internal/usecase/conditions"
	"github.com/mleite/autofund-backend/internal/usecase/engine"
	"github.com/mleite/autofund-backend/internal/usecase/history"
	"github.com/mleite/autofund-backend/internal/usecase/rulemgmt"
)

const testToken = "test-token"

type testEnv struct {
	router http.Handler
	ledger *memory.Ledger
	engine *engine.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := memory.NewLedger()
	ruleRepo := memory.NewRuleRepository()
	execLog := memory.NewExecutionLogRepository(0)

	histSvc := history.NewService(execLog, ledger, logger)
	eng := engine.New(ledger, ruleRepo, histSvc, conditions.NewEvaluator(), logger)
	ruleSvc := rulemgmt.NewService(ruleRepo, logger)

	server := NewServer(ruleSvc, eng, histSvc, logger)
	return &testEnv{router: server.Router(testToken), ledger: ledger, engine: eng}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func ruleBody(name string, amount int64, target uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"name":     name,
		"type":     "fixed_amount",
		"trigger":  "manual",
		"priority": 1,
		"enabled":  true,
		"config": map[string]interface{}{
			"amount":   decimal.NewFromInt(amount),
			"targetId": target,
		},
	}
}

func TestHealthNeedsNoAuth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAndGetRule(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/rules", ruleBody("rent", 300, uuid.New()))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decodeBody[domain.Rule](t, rec)
	assert.NotEqual(t, uuid.Nil, created.ID)

	rec = env.request(t, http.MethodGet, "/api/v1/rules/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[domain.Rule](t, rec)
	assert.Equal(t, "rent", got.Name)
}

func TestCreateRule_ValidationFailure(t *testing.T) {
	env := newTestEnv(t)

	body := ruleBody("bad", -5, uuid.New())
	rec := env.request(t, http.MethodPost, "/api/v1/rules", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRule_UnknownID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/v1/rules/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/rules/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExecuteEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	target := uuid.New()
	env.ledger.AddEnvelope(domain.Envelope{ID: target, Name: "Rent"})
	env.ledger.Deposit(decimal.NewFromInt(500))

	rec := env.request(t, http.MethodPost, "/api/v1/rules", ruleBody("rent", 300, target))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/executions", map[string]string{"trigger": "manual"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	record := decodeBody[domain.ExecutionRecord](t, rec)
	assert.Equal(t, 1, record.RulesExecuted)
	assert.True(t, record.TotalFunded.Equal(decimal.NewFromInt(300)))

	rec = env.request(t, http.MethodGet, "/api/v1/executions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decodeBody[[]domain.ExecutionRecord](t, rec)
	assert.Len(t, records, 1)
}

func TestExecute_InvalidTrigger(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/executions", map[string]string{"trigger": "manual_undo"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// blockingLedger parks the first snapshot until released so a test can
// observe the engine mid-run.
type blockingLedger struct {
	*memory.Ledger
	entered  chan struct{}
	released chan struct{}
	once     sync.Once
}

func (b *blockingLedger) Envelopes(ctx context.Context) ([]domain.Envelope, error) {
	b.once.Do(func() {
		close(b.entered)
		<-b.released
	})
	return b.Ledger.Envelopes(ctx)
}

func TestExecute_ConflictWhileRunning(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := &blockingLedger{
		Ledger:   memory.NewLedger(),
		entered:  make(chan struct{}),
		released: make(chan struct{}),
	}
	ruleRepo := memory.NewRuleRepository()
	execLog := memory.NewExecutionLogRepository(0)

	histSvc := history.NewService(execLog, ledger, logger)
	eng := engine.New(ledger, ruleRepo, histSvc, conditions.NewEvaluator(), logger)
	server := NewServer(rulemgmt.NewService(ruleRepo, logger), eng, histSvc, logger)
	router := server.Router(testToken)

	firstDone := make(chan *httptest.ResponseRecorder)
	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/executions", nil)
		req.Header.Set("Authorization", "Bearer "+testToken)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		firstDone <- rec
	}()

	<-ledger.entered

	req := httptest.NewRequest(http.MethodPost, "/api/v1/executions", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code, "second run while busy maps to 409")

	close(ledger.released)
	first := <-firstDone
	assert.Equal(t, http.StatusOK, first.Code)
}

func TestUndoFlow(t *testing.T) {
	env := newTestEnv(t)

	target := uuid.New()
	env.ledger.AddEnvelope(domain.Envelope{ID: target, Name: "Rent"})
	env.ledger.Deposit(decimal.NewFromInt(500))

	rec := env.request(t, http.MethodPost, "/api/v1/rules", ruleBody("rent", 300, target))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/executions", map[string]string{"trigger": "manual"})
	require.Equal(t, http.StatusOK, rec.Code)
	record := decodeBody[domain.ExecutionRecord](t, rec)

	rec = env.request(t, http.MethodPost, "/api/v1/executions/"+record.ID.String()+"/undo", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	undo := decodeBody[domain.ExecutionRecord](t, rec)
	assert.True(t, undo.IsUndo)
	assert.True(t, undo.TotalFunded.Equal(decimal.NewFromInt(-300)))

	rec = env.request(t, http.MethodPost, "/api/v1/executions/"+record.ID.String()+"/undo", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "double undo conflicts")

	rec = env.request(t, http.MethodPost, "/api/v1/executions/undo-last", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "nothing left to undo")
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/v1/executions/export?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "auto-funding-history-")
	assert.Contains(t, rec.Body.String(), "Execution ID,Trigger,Executed At,Rules Executed,Total Funded,Success")
}

func TestExport_UnknownFormat(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/api/v1/executions/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadinessEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.Deposit(decimal.NewFromInt(100))

	rec := env.request(t, http.MethodPost, "/api/v1/rules", ruleBody("rent", 50, uuid.New()))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/executions/readiness", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	readiness := decodeBody[engine.Readiness](t, rec)
	assert.True(t, readiness.CanExecute)
	assert.Equal(t, 1, readiness.ExecutableCount)
}

func TestBulkToggle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodPost, "/api/v1/rules", ruleBody("a", 50, uuid.New()))
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decodeBody[domain.Rule](t, rec)

	rec = env.request(t, http.MethodPost, "/api/v1/rules", ruleBody("b", 50, uuid.New()))
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decodeBody[domain.Rule](t, rec)

	enabled := false
	rec = env.request(t, http.MethodPost, "/api/v1/rules/bulk", bulkRequest{
		Action:  "toggle",
		RuleIDs: []uuid.UUID{first.ID, second.ID},
		Enabled: &enabled,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeBody[map[string]int](t, rec)["affected"])

	rec = env.request(t, http.MethodGet, "/api/v1/rules/"+first.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[domain.Rule](t, rec).Enabled)
}

func TestSimulateDoesNotMoveFunds(t *testing.T) {
	env := newTestEnv(t)

	target := uuid.New()
	env.ledger.AddEnvelope(domain.Envelope{ID: target, Name: "Rent"})
	env.ledger.Deposit(decimal.NewFromInt(500))

	rec := env.request(t, http.MethodPost, "/api/v1/rules", ruleBody("rent", 300, target))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.request(t, http.MethodPost, "/api/v1/executions/simulate", map[string]string{"trigger": "manual"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/api/v1/executions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decodeBody[[]domain.ExecutionRecord](t, rec)
	assert.Empty(t, records, "simulation leaves no history")
}
