package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/menas/internal/config"
	"github.com/JonMunkholm/menas/internal/core"
	_ "github.com/JonMunkholm/menas/internal/core/rules"
	"github.com/JonMunkholm/menas/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg, err := config.LoadFrom(func(string) (string, bool) { return "", false })
	require.NoError(t, err)

	mem := store.NewMemory()
	mem.Load(store.DemoFixture())

	editors := core.NewEditorManager(core.SessionDeps{
		Registry: core.DefaultRegistry(),
		Tables:   core.NewResolver(mem, mem),
		Store:    mem,
	}, 0, 0)

	srv := NewServer(cfg, Deps{
		Catalog:  mem,
		Lists:    core.NewDatasetLists(mem),
		Editors:  editors,
		Registry: core.DefaultRegistry(),
		Gatherer: prometheus.NewRegistry(),
	})
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// openEditor creates an editor and opens it on people v1.
func openEditor(t *testing.T, srv *Server, extra map[string]any) string {
	t.Helper()
	rec := do(t, srv, http.MethodPost, "/api/editors", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[core.Snapshot](t, rec).ID

	body := map[string]any{"dataset": "people", "version": 1}
	for k, v := range extra {
		body[k] = v
	}
	rec = do(t, srv, http.MethodPost, "/api/editors/"+id+"/open", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return id
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var health struct {
		Status  string                   `json:"status"`
		Commits core.CommitLimiterStatus `json:"commits"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 5, health.Commits.MaxConcurrent)
}

func TestSubmitWhenCommitsBusy(t *testing.T) {
	srv := newTestServer(t)
	id := openEditor(t, srv, nil)

	srv.commits = core.NewCommitLimiter(1, 10*time.Millisecond)
	require.NoError(t, srv.commits.Acquire(context.Background()))
	defer srv.commits.Release()

	rec := do(t, srv, http.MethodPost, "/api/editors/"+id+"/submit", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SES008", decode[ErrorResponse](t, rec).Code)
}

func TestCatalogEndpoints(t *testing.T) {
	srv := newTestServer(t)

	t.Run("rule types", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/rule-types", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		types := decode[[]RuleTypeInfo](t, rec)
		require.Len(t, types, 9)
		assert.Equal(t, "CastingConformanceRule", types[0].RuleType)
	})

	t.Run("datasets", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/datasets", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []core.DatasetSummary{{Name: "people", LatestVersion: 1}}, decode[[]core.DatasetSummary](t, rec))
	})

	t.Run("unknown dataset version", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/datasets/people/9", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "DS001", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("bad version", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/schemas/people/x", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("mapping table versions", func(t *testing.T) {
		rec := do(t, srv, http.MethodGet, "/api/mapping-tables/country_names/versions", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]core.MappingTable](t, rec), 2)
	})
}

func TestExportSchema(t *testing.T) {
	srv := newTestServer(t)

	rec := do(t, srv, http.MethodGet, "/api/schemas/people/1/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="people-v1.json"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"type":"struct"`)

	rec = do(t, srv, http.MethodGet, "/api/schemas/country_codes/1/export", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SCH002", decode[ErrorResponse](t, rec).Code)
}

func TestEditorNotFound(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/editors/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SES005", decode[ErrorResponse](t, rec).Code)
}

func TestAddCastingRule(t *testing.T) {
	srv := newTestServer(t)
	id := openEditor(t, srv, nil)
	base := "/api/editors/" + id

	rec := do(t, srv, http.MethodGet, base, nil)
	snap := decode[core.Snapshot](t, rec)
	assert.Equal(t, core.StateEditing, snap.State)
	assert.Equal(t, "CastingConformanceRule", snap.Draft.Rule.Type)
	assert.Equal(t, 1, snap.Draft.Rule.Order)

	rec = do(t, srv, http.MethodPost, base+"/schema-field", map[string]any{"path": "id"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "id", decode[core.Snapshot](t, rec).Draft.Rule.InputColumn)

	rec = do(t, srv, http.MethodPatch, base+"/draft", map[string]any{
		"outputColumn":   "id_str",
		"outputDataType": "string",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rule := decode[core.ConformanceRule](t, rec)
	assert.Equal(t, "id_str", rule.OutputColumn)

	rec = do(t, srv, http.MethodGet, "/api/datasets/people/1", nil)
	ds := decode[core.Dataset](t, rec)
	require.Len(t, ds.Conformance, 2)
	assert.Equal(t, "CastingConformanceRule", ds.Conformance[1].Type)

	rec = do(t, srv, http.MethodGet, base, nil)
	assert.Equal(t, core.StateClosed, decode[core.Snapshot](t, rec).State)
}

func TestSubmitRejected(t *testing.T) {
	srv := newTestServer(t)
	id := openEditor(t, srv, nil)

	rec := do(t, srv, http.MethodPost, "/api/editors/"+id+"/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "VAL005", resp.Code)
	assert.NotEmpty(t, resp.Fields)

	rec = do(t, srv, http.MethodGet, "/api/editors/"+id, nil)
	snap := decode[core.Snapshot](t, rec)
	assert.Equal(t, core.StateEditing, snap.State)
	assert.NotEmpty(t, snap.Errors)
}

func TestOpenTwiceConflicts(t *testing.T) {
	srv := newTestServer(t)
	id := openEditor(t, srv, nil)

	rec := do(t, srv, http.MethodPost, "/api/editors/"+id+"/open", map[string]any{"dataset": "people", "version": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "SES001", decode[ErrorResponse](t, rec).Code)
}

func TestEditExistingRule(t *testing.T) {
	srv := newTestServer(t)
	id := openEditor(t, srv, map[string]any{"order": 0})
	base := "/api/editors/" + id

	snap := decode[core.Snapshot](t, do(t, srv, http.MethodGet, base, nil))
	assert.True(t, snap.Draft.IsEdit)
	assert.Equal(t, "UppercaseConformanceRule", snap.Draft.Rule.Type)

	rec := do(t, srv, http.MethodPost, base+"/rule-type", map[string]any{"ruleType": "CastingConformanceRule"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "RULE002", decode[ErrorResponse](t, rec).Code)

	rec = do(t, srv, http.MethodPost, base+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.StateClosed, decode[core.Snapshot](t, rec).State)
}

func TestOpenOrderOutOfRange(t *testing.T) {
	srv := newTestServer(t)
	rec := do(t, srv, http.MethodPost, "/api/editors", nil)
	id := decode[core.Snapshot](t, rec).ID

	rec = do(t, srv, http.MethodPost, "/api/editors/"+id+"/open", map[string]any{"dataset": "people", "version": 1, "order": 5})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "RULE003", decode[ErrorResponse](t, rec).Code)
}

func TestMappingRuleFlow(t *testing.T) {
	srv := newTestServer(t)
	id := openEditor(t, srv, nil)
	base := "/api/editors/" + id

	rec := do(t, srv, http.MethodPost, base+"/rule-type", map[string]any{"ruleType": "MappingConformanceRule"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decode[core.Snapshot](t, rec)
	assert.Equal(t, "country_names", snap.Draft.Rule.MappingTable)
	assert.Equal(t, 2, snap.Draft.Rule.MappingTableVersion)
	assert.Equal(t, []int{1, 2}, snap.MappingTableVersions)
	require.NotNil(t, snap.MappingTableSchema)
	assert.True(t, snap.MappingTableSchema.HasPath("iso3"))

	rec = do(t, srv, http.MethodPost, base+"/join-conditions", map[string]any{"datasetField": "country_code", "mappingTableField": "code"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[core.Snapshot](t, rec).JoinConditions, 1)

	rec = do(t, srv, http.MethodDelete, base+"/join-conditions/3", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "JC002", decode[ErrorResponse](t, rec).Code)

	rec = do(t, srv, http.MethodPost, base+"/schema-field", map[string]any{"path": "name"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "name", decode[core.Snapshot](t, rec).Draft.Rule.TargetAttribute)

	rec = do(t, srv, http.MethodPatch, base+"/draft", map[string]any{"outputColumn": "country_name"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rule := decode[core.ConformanceRule](t, rec)
	assert.Equal(t, "MappingConformanceRule", rule.Type)
	assert.NotEmpty(t, rule.AttributeMappings)
}

func TestMappingTableNotFoundKeepsEditing(t *testing.T) {
	srv := newTestServer(t)
	id := openEditor(t, srv, nil)
	base := "/api/editors/" + id

	rec := do(t, srv, http.MethodPost, base+"/rule-type", map[string]any{"ruleType": "MappingConformanceRule"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPost, base+"/mapping-table", map[string]any{"id": "missing"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decode[core.Snapshot](t, rec)
	assert.Equal(t, core.StateEditing, snap.State)
	assert.NotEmpty(t, snap.ResolveError)
	assert.Empty(t, snap.JoinConditions)
}

func TestConcatColumnsViaForm(t *testing.T) {
	srv := newTestServer(t)
	id := openEditor(t, srv, nil)
	base := "/api/editors/" + id

	rec := do(t, srv, http.MethodPost, base+"/rule-type", map[string]any{"ruleType": "ConcatenationConformanceRule"})
	require.Equal(t, http.StatusOK, rec.Code)

	for _, col := range []string{"first_name", "last_name"} {
		req := httptest.NewRequest(http.MethodPost, base+"/concat-columns", strings.NewReader(url.Values{"column": {col}}.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec = httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	snap := decode[core.Snapshot](t, rec)
	assert.Equal(t, []string{"first_name", "last_name"}, snap.Draft.Rule.InputColumns)

	rec = do(t, srv, http.MethodPut, base+"/concat-columns/1", map[string]any{"column": "country_code"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"first_name", "country_code"}, decode[core.Snapshot](t, rec).Draft.Rule.InputColumns)
}

func TestDialogForHTMX(t *testing.T) {
	srv := newTestServer(t)
	id := openEditor(t, srv, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/editors/"+id+"/rule-type", strings.NewReader("ruleType=DropConformanceRule"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `id="rule-dialog"`)

	req = httptest.NewRequest(http.MethodPost, "/api/editors/"+id+"/submit", nil)
	req.Header.Set("HX-Request", "true")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="rule-dialog"`)
}

type brokenWriter struct {
	header http.Header
	status int
}

func (w *brokenWriter) Header() http.Header { return w.header }

func (w *brokenWriter) WriteHeader(status int) { w.status = status }

func (w *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("client went away") }

func TestEditorDialogLogsRenderFailure(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	srv := newTestServer(t)
	id := openEditor(t, srv, nil)

	w := &brokenWriter{header: http.Header{}}
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/editors/"+id+"/dialog", nil))

	assert.Contains(t, buf.String(), "render rule dialog")
	assert.Contains(t, buf.String(), "client went away")
}

func TestPlainErrorResponse(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.respondError(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil), core.ErrSessionAlreadyOpen, http.StatusConflict)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Another rule is already being edited (Code: SES001). Finish or cancel the open rule first\n", rec.Body.String())
}

func TestRemoveEditor(t *testing.T) {
	srv := newTestServer(t)
	id := openEditor(t, srv, nil)

	rec := do(t, srv, http.MethodDelete, "/api/editors/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, srv, http.MethodGet, "/api/editors/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrEditorNotFound, http.StatusNotFound},
		{fmt.Errorf("load: %w", core.ErrDatasetNotFound), http.StatusNotFound},
		{core.ErrSessionAlreadyOpen, http.StatusConflict},
		{core.ErrCommitInProgress, http.StatusConflict},
		{fmt.Errorf("%w: order 0", core.ErrRuleChanged), http.StatusConflict},
		{core.ErrIndexOutOfRange, http.StatusBadRequest},
		{errBadRequest, http.StatusBadRequest},
		{core.ErrTooManyCommits, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()

	assert.True(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.2"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rl.middleware(http.NotFoundHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", decode[ErrorResponse](t, rec).Code)

	rl.stop()
}
