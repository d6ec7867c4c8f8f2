package web

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheet2neon/internal/audit"
	"github.com/JonMunkholm/sheet2neon/internal/config"
	"github.com/JonMunkholm/sheet2neon/internal/core"
	"github.com/JonMunkholm/sheet2neon/internal/logging"
	"github.com/JonMunkholm/sheet2neon/internal/report"
	"github.com/JonMunkholm/sheet2neon/internal/service"
	"github.com/JonMunkholm/sheet2neon/internal/store"
)

const studentsCSV = `name,email,year,department_id
asha rao,asha@uni.edu,2,1
Li Wei,li@uni.edu,3,9
Asha Rao,asha@uni.edu,2,1
Bo,<b>bo</b>,1,1
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	env := map[string]string{
		"DB_BACKEND":                     "sqlite",
		"SQLITE_PATH":                    filepath.Join(t.TempDir(), "etl.db"),
		"REPORT_DIR":                     filepath.Join(t.TempDir(), "logs"),
		"RATE_LIMIT_REQUESTS_PER_MINUTE": "0",
	}
	cfg, err := config.LoadFrom(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, opts service.Options) (*Server, *service.Service) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	_, err = st.SeedDepartments(ctx, []int64{1, 2})
	require.NoError(t, err)

	base := service.OptionsFromConfig(cfg, nil)
	if opts.MaxConcurrent != 0 {
		base.MaxConcurrent = opts.MaxConcurrent
	}
	if opts.MaxWait != 0 {
		base.MaxWait = opts.MaxWait
	}
	svc := service.New(st, base)
	return NewServer(svc, cfg), svc
}

func do(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, path, filename, body string, fields map[string][]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	for name, values := range fields {
		for _, v := range values {
			require.NoError(t, mw.WriteField(name, v))
		}
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t), service.Options{})

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var h HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 2, h.Runs.MaxConcurrent)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t), service.Options{})
	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListEntities(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t), service.Options{})

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/entities", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []report.Entity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 3)
	students := got[2]
	assert.Equal(t, "students", students.Key)
	assert.Equal(t, []string{"email"}, students.KeyFields)
	assert.Equal(t, "email", students.Fields[1].Type)
	assert.Equal(t, "department", students.Fields[3].Lookup)
}

func TestDownloadTemplate(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t), service.Options{})

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/template/students", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "name,email,year,department_id\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "students_template.csv")

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/template/teachers", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "CFG001", decodeError(t, rec).Code)
}

func TestRunAndHistory(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t), service.Options{})

	rec := do(t, s, uploadRequest(t, "/api/entities/students/runs", "students.csv", studentsCSV, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Report-File"))

	var rep core.RunReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, 4, rep.RecordsSeen)
	assert.Equal(t, 1, rep.RecordsLoaded)
	assert.Equal(t, 1, rep.RecordsSkipped)
	assert.Equal(t, 2, rep.RecordsRejected)
	assert.NoError(t, rep.Check())

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []core.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, rep.RunID, runs[0].RunID)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/runs/"+rep.RunID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/runs/"+rep.RunID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	page := rec.Body.String()
	assert.Contains(t, page, "students run")
	assert.Contains(t, page, "Rejected rows")
	assert.Contains(t, page, "VAL005")
	assert.Contains(t, page, "&lt;b&gt;bo&lt;/b&gt;")
	assert.NotContains(t, page, "<b>bo</b>", "row content must be escaped")
}

func TestGetRun_Errors(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t), service.Options{})

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/runs/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "RUN005", decodeError(t, rec).Code)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/runs/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "RUN004", decodeError(t, rec).Code)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/runs/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestRun_Errors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Run.MaxFileSize = 64
	s, _ := newTestServer(t, cfg, service.Options{})

	tests := []struct {
		name     string
		req      *http.Request
		wantCode int
		wantErr  string
	}{
		{
			name:     "unknown entity",
			req:      uploadRequest(t, "/api/entities/teachers/runs", "t.csv", "a\n1\n", nil),
			wantCode: http.StatusNotFound,
			wantErr:  "CFG001",
		},
		{
			name:     "no file",
			req:      uploadRequest(t, "/api/entities/students/runs", "", "", map[string][]string{"map": {"name=Name"}}),
			wantCode: http.StatusBadRequest,
			wantErr:  "FILE002",
		},
		{
			name:     "unsupported type",
			req:      uploadRequest(t, "/api/entities/students/runs", "students.pdf", "x", nil),
			wantCode: http.StatusBadRequest,
			wantErr:  "FILE003",
		},
		{
			name:     "bad mapping",
			req:      uploadRequest(t, "/api/entities/students/runs", "s.csv", "a\n1\n", map[string][]string{"map": {"name"}}),
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  "CFG003",
		},
		{
			name:     "file too large",
			req:      uploadRequest(t, "/api/entities/students/runs", "students.csv", studentsCSV, nil),
			wantCode: http.StatusRequestEntityTooLarge,
			wantErr:  "FILE001",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.req)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantErr, decodeError(t, rec).Code)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/entities/students/runs", strings.NewReader("name\nx\n"))
	req.Header.Set("Content-Type", "text/csv")
	rec := do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "body must be a multipart form")
}

func TestRun_Busy(t *testing.T) {
	s, svc := newTestServer(t, testConfig(t), service.Options{MaxConcurrent: 1, MaxWait: 10 * time.Millisecond})
	require.True(t, svc.Limiter().TryAcquire())
	defer svc.Limiter().Release()

	rec := do(t, s, uploadRequest(t, "/api/entities/students/runs", "students.csv", studentsCSV, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RUN001", decodeError(t, rec).Code)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig(t)
	cfg.Security.APIKeys = []string{"secret"}
	s, _ := newTestServer(t, cfg, service.Options{})

	rec := do(t, s, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = do(t, s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health checks stay open")
}

func TestAudit(t *testing.T) {
	s, _ := newTestServer(t, testConfig(t), service.Options{})

	rec := do(t, s, uploadRequest(t, "/api/audit", "students.csv", studentsCSV, map[string][]string{"entity": {"students"}}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var a audit.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, "students.csv", a.Source)
	assert.Equal(t, 4, a.TotalRows)
	assert.Equal(t, 1, a.Duplicates.Count)
	assert.Equal(t, 2, a.RowsFailingRules)

	rec = do(t, s, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, "[]\n", rec.Body.String(), "an audit loads nothing")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{service.ErrTooManyRuns, http.StatusServiceUnavailable},
		{store.ErrRunNotFound, http.StatusNotFound},
		{core.NewConfigurationError("unknown entity %q", "x"), http.StatusNotFound},
		{core.NewConfigurationError("lookup %q is empty", "department"), http.StatusUnprocessableEntity},
		{core.NewExtractionError("a.csv", assert.AnError), http.StatusBadRequest},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestRespondError_LogLevel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"configuration", core.NewConfigurationError("lookup %q is empty", "department"), "level=WARN"},
		{"extraction", core.NewExtractionError("a.csv", assert.AnError), "level=WARN"},
		{"internal", assert.AnError, "level=ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
			req = req.WithContext(logging.WithLogger(req.Context(), logger))

			(&Server{}).respondError(httptest.NewRecorder(), req, tt.err)

			assert.Contains(t, buf.String(), tt.want)
			assert.Contains(t, buf.String(), `msg="request error"`)
		})
	}
}
