package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/evogene-server/internal/auth"
	"github.com/evogene-server/internal/domain"
	"github.com/evogene-server/internal/health"
	"github.com/evogene-server/internal/logging"
	"github.com/evogene-server/internal/repository"
	"github.com/evogene-server/internal/router"
	"github.com/evogene-server/internal/session"
	"github.com/evogene-server/internal/task"
	"github.com/evogene-server/pkg/external"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var chr12 = domain.VariantRecord{Chromosome: "chr12", VariantPosition: 43119628, Alternative: "G", Genome: "hg38"}

type stubExtractor struct {
	record *domain.VariantRecord
	err    error
}

func (s *stubExtractor) Extract(context.Context, string) (*domain.VariantRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	r := *s.record
	return &r, nil
}

// stubScorer blocks on gate when it is set
type stubScorer struct {
	gate     chan struct{}
	response []byte
}

func (s *stubScorer) Score(ctx context.Context, _ domain.VariantRecord) ([]byte, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.response, nil
}

type stubLLM struct {
	report string
}

func (s *stubLLM) Generate(context.Context, string, string) (string, error) {
	return s.report, nil
}

func (s *stubLLM) GenerateJSON(context.Context, string, string, []domain.SchemaField) (string, error) {
	return "", errors.New("not used")
}

type stubPredictor struct {
	mu      sync.Mutex
	outcome domain.DiabetesOutcome
	got     domain.DiabetesFeatures
}

func (s *stubPredictor) Predict(features domain.DiabetesFeatures) (domain.DiabetesOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = features
	return s.outcome, nil
}

type stubClassifier struct {
	result *domain.ScanClassification
	err    error
	names  []string
}

func (s *stubClassifier) Classify(_ context.Context, filename string, _ []byte) (*domain.ScanClassification, error) {
	s.names = append(s.names, filename)
	return s.result, s.err
}

type failingStore struct {
	session.Store
}

func (failingStore) Load(context.Context, string) (*domain.Checkpoint, error) {
	return nil, errors.New("connection refused")
}

type fixture struct {
	config     *domain.Config
	scorer     *stubScorer
	predictor  *stubPredictor
	classifier *stubClassifier
	records    *repository.MemoryRepository
	sessions   session.Store
	pool       *task.Pool
	issuer     *auth.Issuer
	deps       Dependencies
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logging.Discard()

	f := &fixture{
		config: &domain.Config{
			Server: domain.ServerConfig{
				MediaDir:       t.TempDir(),
				MaxUploadSize:  1 << 20,
				AllowedOrigins: []string{"*"},
			},
			Imaging: domain.ImagingConfig{Threshold: 0.5},
			Worker:  domain.WorkerConfig{Workers: 1, QueueSize: 1, TaskTimeout: 5 * time.Second},
			Logging: domain.LoggingConfig{Level: "info"},
		},
		scorer:     &stubScorer{response: []byte(`{"delta_score":-0.0021}`)},
		predictor:  &stubPredictor{outcome: domain.DiabetesOutcome{Positive: true, Probability: 0.68449}},
		classifier: &stubClassifier{result: &domain.ScanClassification{Score: 0.91, Mask: []byte("mask-bytes")}},
		records:    repository.NewMemoryRepository(),
	}

	sessions, err := session.NewMemoryStore(100)
	require.NoError(t, err)
	f.sessions = sessions

	issuer, err := auth.NewIssuer(domain.AuthConfig{JWTSecret: "test-secret"})
	require.NoError(t, err)
	f.issuer = issuer

	f.pool = task.NewPool(f.config.Worker, task.NewMemoryStore(time.Hour), logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = f.pool.Shutdown(ctx)
	})

	nodes := router.NewNodes(&stubExtractor{record: &chr12}, f.scorer, f.predictor, &stubLLM{report: "Synthesized report"}, logger)
	graph := router.NewGraph(router.NewClassifier(router.DefaultRules), nodes, logger)

	f.deps = Dependencies{
		Chat:       router.NewService(graph, f.sessions, logger),
		Tasks:      f.pool,
		Accounts:   auth.NewService(f.records, issuer, bcrypt.MinCost, logger),
		Issuer:     issuer,
		Records:    f.records,
		Diabetes:   f.predictor,
		Classifier: f.classifier,
		Breakers:   external.NewBreakerRegistry(logger),
		Backends:   map[string]string{"sessions": session.BackendMemory, "tasks": "memory"},
	}
	return f
}

func (f *fixture) server() *Server {
	return NewServer(f.config, f.deps, logging.Discard())
}

func do(t *testing.T, h http.Handler, method, target string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := do(t, f.server().Handler(), http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, Version, body["version"])
	assert.Equal(t, map[string]interface{}{"sessions": "memory", "tasks": "memory"}, body["storage"])
	assert.Equal(t, true, body["diabetes_model"])
	assert.Contains(t, body, "workers")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHealth_Degraded(t *testing.T) {
	f := newFixture(t)
	f.deps.Diabetes = nil
	f.deps.Health = health.NewChecker(time.Second, logging.Discard(),
		health.Static("storage", health.StateWarning, "running on in-memory fallback"),
	)

	w := do(t, f.server().Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "warning", body["status"])
	assert.Equal(t, false, body["diabetes_model"])
	components := body["components"].(map[string]interface{})
	assert.Contains(t, components, "storage")
}

func TestHealth_Unhealthy(t *testing.T) {
	f := newFixture(t)
	f.deps.Health = health.NewChecker(time.Second, logging.Discard(),
		health.NewPingCheck("database", func(context.Context) error { return errors.New("connection refused") }),
	)

	w := do(t, f.server().Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", decode(t, w)["status"])
}

func TestChat_VariantAnalysis(t *testing.T) {
	f := newFixture(t)
	h := f.server().Handler()

	w := do(t, h, http.MethodPost, "/chat/", map[string]interface{}{
		"user_query": "Analyze variant chr12 43119628 G",
		"session_id": "patient-1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp router.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, router.StatusSuccess, resp.Status)
	assert.Equal(t, "Synthesized report", resp.Report)
	assert.Equal(t, "Synthesized report", resp.HistoryState.DNAReport)
	assert.Empty(t, resp.ErrorMessage)

	checkpoint, err := f.sessions.Load(context.Background(), "patient-1")
	require.NoError(t, err)
	assert.Equal(t, "Synthesized report", checkpoint.History().DNAReport)
}

func TestChat_PromptAliasAndDefaultSession(t *testing.T) {
	f := newFixture(t)

	w := do(t, f.server().Handler(), http.MethodPost, "/chat/", map[string]interface{}{
		"prompt":       "check my diabetes risk",
		"patient_data": map[string]interface{}{"glucose": 148, "blood_pressure_systolic": 130, "blood_pressure_diastolic": 80},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "Success", body["status"])
	assert.Equal(t, "Synthesized report", body["history_state"].(map[string]interface{})["diabetes_report"])

	_, err := f.sessions.Load(context.Background(), domain.DefaultSessionID)
	assert.NoError(t, err)
	assert.InDelta(t, 105.0, f.predictor.got.BloodPressure, 1e-9)
}

func TestChat_Validation(t *testing.T) {
	f := newFixture(t)
	h := f.server().Handler()

	tests := []struct {
		name string
		body interface{}
		key  string
	}{
		{"no query", map[string]interface{}{"session_id": "s"}, "non_field_errors"},
		{"query too long", map[string]interface{}{"user_query": strings.Repeat("a", 501)}, "user_query"},
		{"session too long", map[string]interface{}{"prompt": "hi", "session_id": strings.Repeat("s", 101)}, "session_id"},
		{"malformed json", `{"prompt":`, "detail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/chat/", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode(t, w), tt.key)
		})
	}
}

func TestChat_MissingQueryMessage(t *testing.T) {
	f := newFixture(t)

	w := do(t, f.server().Handler(), http.MethodPost, "/chat/", map[string]interface{}{"session_id": "s"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"non_field_errors":["Either 'user_query' or 'prompt' is required."]}`, w.Body.String())
}

func TestChat_OrchestrationFailure(t *testing.T) {
	f := newFixture(t)
	logger := logging.Discard()
	nodes := router.NewNodes(&stubExtractor{record: &chr12}, f.scorer, f.predictor, &stubLLM{}, logger)
	graph := router.NewGraph(router.NewClassifier(router.DefaultRules), nodes, logger)
	f.deps.Chat = router.NewService(graph, failingStore{}, logger)

	w := do(t, f.server().Handler(), http.MethodPost, "/chat/", map[string]interface{}{"user_query": "hello"})
	require.Equal(t, http.StatusInternalServerError, w.Code)

	body := decode(t, w)
	assert.Equal(t, "Internal Server Error during graph execution", body["error"])
	assert.Contains(t, body["details"], "connection refused")
}

func TestChatAsync_CompletesAndPolls(t *testing.T) {
	targets := []string{"/chat/async/", "/chat/?async=true"}

	for _, target := range targets {
		t.Run(target, func(t *testing.T) {
			f := newFixture(t)
			h := f.server().Handler()

			w := do(t, h, http.MethodPost, target, map[string]interface{}{"prompt": "Analyze variant chr12 43119628 G"})
			require.Equal(t, http.StatusAccepted, w.Code)

			body := decode(t, w)
			assert.Equal(t, "processing", body["status"])
			assert.Equal(t, "Analysis started in background", body["message"])
			taskID, _ := body["task_id"].(string)
			require.NotEmpty(t, taskID)

			var final map[string]interface{}
			require.Eventually(t, func() bool {
				w := do(t, h, http.MethodGet, "/status/"+taskID+"/", nil)
				if w.Code != http.StatusOK {
					return false
				}
				final = decode(t, w)
				return true
			}, 2*time.Second, 10*time.Millisecond)

			assert.Equal(t, "Success", final["status"])
			assert.Equal(t, "Synthesized report", final["report"])
			assert.Contains(t, final["model_result"], "delta_score")
			assert.Equal(t, "", final["error_message"])
		})
	}
}

func TestTaskStatus_Unknown(t *testing.T) {
	f := newFixture(t)
	w := do(t, f.server().Handler(), http.MethodGet, "/status/does-not-exist/", nil)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"status":"processing"}`, w.Body.String())
}

func TestChatAsync_QueueFull(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.scorer.gate = gate
	defer close(gate)
	h := f.server().Handler()

	body := map[string]interface{}{"prompt": "variant chr12 43119628 G"}

	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/chat/async/", body).Code)
	require.Eventually(t, func() bool {
		return f.pool.Stats().Running == 1
	}, time.Second, 5*time.Millisecond)

	require.Equal(t, http.StatusAccepted, do(t, h, http.MethodPost, "/chat/async/", body).Code)

	w := do(t, h, http.MethodPost, "/chat/async/", body)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, domain.ErrQueueFull, decode(t, w)["code"])
	assert.Equal(t, int64(1), f.pool.Stats().Rejected)
}

func TestTaskStatusStream(t *testing.T) {
	f := newFixture(t)
	srv := f.server()
	srv.wsPollInterval = 10 * time.Millisecond
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	release := make(chan struct{})
	taskID, err := f.pool.Submit(func(ctx context.Context) (domain.TaskStatus, interface{}) {
		<-release
		return domain.TaskSuccess, map[string]string{"status": "Success", "report": "streamed"}
	})
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/status/" + taskID + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))

	_, first, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"task_id":"`+taskID+`","status":"processing"}`, string(first))

	close(release)

	_, final, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"Success","report":"streamed"}`, string(final))

	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
}

func TestCORS(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/chat/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()

	f.server().Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
