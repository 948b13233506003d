package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/labaccess-backend/api/controllers"
	"github.com/angelmondragon/labaccess-backend/api/middleware"
	"github.com/angelmondragon/labaccess-backend/internal/badges"
	"github.com/angelmondragon/labaccess-backend/internal/pipeline"
	"github.com/angelmondragon/labaccess-backend/internal/records"
	"github.com/angelmondragon/labaccess-backend/internal/runs"
	"github.com/angelmondragon/labaccess-backend/internal/trigger"
	"github.com/angelmondragon/labaccess-backend/pkg/config"
	"github.com/angelmondragon/labaccess-backend/pkg/db/models"
	"github.com/angelmondragon/labaccess-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
	"github.com/angelmondragon/labaccess-backend/pkg/logger"
	"github.com/angelmondragon/labaccess-backend/pkg/metrics"
	"github.com/angelmondragon/labaccess-backend/pkg/types"
)

const webhookSecret = "shh"

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubPipeline struct {
	calls []pipeline.Submission
	err   error
}

func (s *stubPipeline) KindForSheet(sheet string) (enums.SubmissionKind, error) {
	if sheet == "Basket Assignment" {
		return enums.SubmissionKindBasketAssignment, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown sheet")
}

func (s *stubPipeline) Process(_ context.Context, sub pipeline.Submission) (*pipeline.Result, error) {
	s.calls = append(s.calls, sub)
	return &pipeline.Result{
		RunID: uuid.MustParse("7f1c2f9e-7a43-4c8e-9d55-0a4b1f0c2d11"),
		Kind:  sub.Kind,
		Sheet: sub.Sheet,
		Row:   5,
		Stage: enums.PipelineStageAcknowledged,
	}, s.err
}

type testServer struct {
	handler  http.Handler
	pipeline *stubPipeline
	runs     runs.Repository
}

func newTestServer(t *testing.T, ready map[string]controllers.Pinger) *testServer {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	cfg := &config.Config{
		App:     config.AppConfig{Env: "test"},
		API:     config.APIConfig{OperatorToken: "op-token", AllowedOrigins: []string{"https://scanner.example"}},
		Webhook: config.WebhookConfig{Secret: webhookSecret},
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewPipelineMetrics(reg)
	m.IncSuccess(string(enums.SubmissionKindUserRegistration))

	stub := &stubPipeline{}
	handler, err := trigger.NewHandler(trigger.HandlerParams{Pipeline: stub, Metrics: m, Logger: logg})
	require.NoError(t, err)

	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.SubmissionRun{}))
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	repo := runs.NewRepository(conn)

	return &testServer{
		handler: NewRouter(RouterParams{
			Config:   cfg,
			Logger:   logg,
			Ready:    ready,
			Gatherer: reg,
			Trigger:  handler,
			Verifier: badges.NewVerifier(nil),
			Runs:     repo,
		}),
		pipeline: stub,
		runs:     repo,
	}
}

func (s *testServer) do(method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	srv := newTestServer(t, map[string]controllers.Pinger{"db": stubPinger{}, "redis": nil})

	rec := srv.do(http.MethodGet, "/health/live", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-LabAccess-Env"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = srv.do(http.MethodGet, "/health/ready", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	srv := newTestServer(t, map[string]controllers.Pinger{"db": stubPinger{err: errors.New("down")}})

	rec := srv.do(http.MethodGet, "/health/ready", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
}

func TestMetricsRoute(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := srv.do(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "submission_success")
}

func TestFormSubmitRequiresSignature(t *testing.T) {
	srv := newTestServer(t, nil)
	body := []byte(`{"eventId":"evt-1","sheet":"Basket Assignment","row":5}`)

	rec := srv.do(http.MethodPost, "/api/v1/webhooks/form-submit", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(http.MethodPost, "/api/v1/webhooks/form-submit", body, map[string]string{
		middleware.SignatureHeader: middleware.Sign(body, "wrong"),
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, srv.pipeline.calls)
}

func TestFormSubmitRunsPipeline(t *testing.T) {
	srv := newTestServer(t, nil)
	body := []byte(`{"eventId":"evt-1","sheet":"Basket Assignment","row":5}`)

	rec := srv.do(http.MethodPost, "/api/v1/webhooks/form-submit", body, map[string]string{
		middleware.SignatureHeader: middleware.Sign(body, webhookSecret),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var envelope struct {
		Data struct {
			RunID     string `json:"runId"`
			Kind      string `json:"kind"`
			Row       int    `json:"row"`
			Stage     string `json:"stage"`
			Duplicate bool   `json:"duplicate"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, "7f1c2f9e-7a43-4c8e-9d55-0a4b1f0c2d11", envelope.Data.RunID)
	assert.Equal(t, string(enums.SubmissionKindBasketAssignment), envelope.Data.Kind)
	assert.Equal(t, string(enums.PipelineStageAcknowledged), envelope.Data.Stage)
	assert.False(t, envelope.Data.Duplicate)

	require.Len(t, srv.pipeline.calls, 1)
	assert.Equal(t, enums.TriggerSourceWebhook, srv.pipeline.calls[0].Source)
	assert.Equal(t, 5, srv.pipeline.calls[0].Row)
}

func TestFormSubmitMapsPipelineErrors(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.pipeline.err = pkgerrors.New(pkgerrors.CodeAlreadyProcessed, "row done")
	body := []byte(`{"sheet":"Basket Assignment","row":5}`)

	rec := srv.do(http.MethodPost, "/api/v1/webhooks/form-submit", body, map[string]string{
		middleware.SignatureHeader: middleware.Sign(body, webhookSecret),
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var envelope types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.Equal(t, string(pkgerrors.CodeAlreadyProcessed), envelope.Error.Code)
}

func TestFormSubmitRejectsUnknownSheet(t *testing.T) {
	srv := newTestServer(t, nil)
	body := []byte(`{"sheet":"Inventory","row":2}`)

	rec := srv.do(http.MethodPost, "/api/v1/webhooks/form-submit", body, map[string]string{
		middleware.SignatureHeader: middleware.Sign(body, webhookSecret),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, srv.pipeline.calls)
}

func TestBadgeVerify(t *testing.T) {
	srv := newTestServer(t, nil)
	data := records.BadgeData{EID: "al123", Name: "Ada Lovelace", Phone: "(512) 555-0100", Email: "ada@x.edu", Basket: "B12", Assigned: "2024-01-02"}
	hash, err := data.ComputeHash()
	require.NoError(t, err)
	data.Hash = hash
	payload, err := data.Payload()
	require.NoError(t, err)

	body, err := json.Marshal(map[string]string{"payload": payload})
	require.NoError(t, err)
	rec := srv.do(http.MethodPost, "/api/v1/badges/verify", body, map[string]string{"Origin": "https://scanner.example"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "https://scanner.example", rec.Header().Get("Access-Control-Allow-Origin"))

	var envelope struct {
		Data struct {
			Valid       bool   `json:"valid"`
			HashMatches bool   `json:"hashMatches"`
			Registered  bool   `json:"registered"`
			EID         string `json:"eid"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	assert.True(t, envelope.Data.HashMatches)
	assert.False(t, envelope.Data.Registered)
	assert.False(t, envelope.Data.Valid)
	assert.Equal(t, "al123", envelope.Data.EID)

	rec = srv.do(http.MethodPost, "/api/v1/badges/verify", []byte(`{}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBadgeVerifyPreflight(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := srv.do(http.MethodOptions, "/api/v1/badges/verify", nil, map[string]string{
		"Origin":                        "https://scanner.example",
		"Access-Control-Request-Method": http.MethodPost,
	})
	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "https://scanner.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunsRequireOperatorToken(t *testing.T) {
	srv := newTestServer(t, nil)
	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	run := &models.SubmissionRun{
		ID:        uuid.New(),
		EventID:   "evt-7",
		Source:    enums.TriggerSourcePubSub,
		Kind:      enums.SubmissionKindUserRegistration,
		SheetName: "New User Registration",
		RowNumber: 4,
		Status:    enums.RunStatusSucceeded,
		Stage:     enums.PipelineStageAcknowledged,
		StartedAt: now,
	}
	require.NoError(t, srv.runs.Create(context.Background(), run))

	rec := srv.do(http.MethodGet, "/api/v1/runs", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	auth := map[string]string{"Authorization": "Bearer op-token"}
	rec = srv.do(http.MethodGet, "/api/v1/runs?kind=user_registration", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list struct {
		Data struct {
			Runs []struct {
				ID    string `json:"id"`
				Row   int    `json:"row"`
				Stage string `json:"stage"`
			} `json:"runs"`
			NextCursor string `json:"nextCursor"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list.Data.Runs, 1)
	assert.Equal(t, 4, list.Data.Runs[0].Row)
	assert.Empty(t, list.Data.NextCursor)

	rec = srv.do(http.MethodGet, "/api/v1/runs/"+run.ID.String(), nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(http.MethodGet, "/api/v1/runs/"+uuid.NewString(), nil, auth)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = srv.do(http.MethodGet, "/api/v1/runs?status=bogus", nil, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(http.MethodGet, "/api/v1/runs?cursor=%25%25", nil, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
