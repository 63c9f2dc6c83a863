package handle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"paperai/api/internal/gateway"
	"paperai/api/internal/paper"
	"paperai/api/internal/store"
)

type stubGateway struct {
	out   paper.Outcome
	calls int
	key   string
	sub   gateway.Submission
}

func (s *stubGateway) Generate(_ context.Context, key string, sub gateway.Submission) paper.Outcome {
	s.calls++
	s.key = key
	s.sub = sub
	return s.out
}

type stubPapers struct {
	recs map[uuid.UUID]store.Record
}

func (s *stubPapers) Get(_ context.Context, id uuid.UUID) (*store.Record, error) {
	rec, ok := s.recs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (s *stubPapers) Recent(context.Context, int) ([]store.Record, error) {
	out := make([]store.Record, 0, len(s.recs))
	for _, r := range s.recs {
		out = append(out, r)
	}
	return out, nil
}

const body = `{"files":[{"name":"p.png","mimeType":"image/png","base64Payload":"aGVsbG8="}],
"config":{"gradeLevel":"5","subject":"Sciences","difficulty":"EASY","targetLanguage":"French","counts":{"mcq":2,"trueFalse":1,"short":0,"long":0}}}`

func router(gw Generator, papers PaperStore, opts Options) http.Handler {
	return NewRouter(New(gw, papers, opts), []string{"*"}, zerolog.Nop())
}

func post(h http.Handler, path, payload string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGeneratePaperSuccess(t *testing.T) {
	p := paper.QuestionPaper{Title: "Les plantes", TargetLanguage: "French", TotalMarks: 3, DurationMinutes: 20}
	gw := &stubGateway{out: paper.Success(p)}
	h := router(gw, nil, Options{ClientHeader: "CF-Connecting-IP"})

	rec := post(h, "/v1/generate-paper", body, map[string]string{"CF-Connecting-IP": "203.0.113.7"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var got paper.QuestionPaper
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Title != "Les plantes" {
		t.Fatalf("unexpected paper %+v", got)
	}
	if gw.key != "203.0.113.7" {
		t.Fatalf("expected client key from header, got %q", gw.key)
	}
	if gw.sub.Config.Counts.MCQ != 2 || gw.sub.Files[0].Base64Payload != "aGVsbG8=" {
		t.Fatalf("submission not decoded: %+v", gw.sub)
	}
}

func TestGeneratePaperLegacyPathAndAnonymousKey(t *testing.T) {
	gw := &stubGateway{out: paper.Success(paper.QuestionPaper{})}
	rec := post(router(gw, nil, Options{ClientHeader: "CF-Connecting-IP"}), "/generate-paper", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gw.key != "anonymous" {
		t.Fatalf("expected anonymous key, got %q", gw.key)
	}
}

func TestGeneratePaperFailureStatuses(t *testing.T) {
	cases := map[paper.ErrorKind]int{
		paper.RateLimited:       http.StatusTooManyRequests,
		paper.InvalidRequest:    http.StatusBadRequest,
		paper.BackendError:      http.StatusBadGateway,
		paper.MalformedResponse: http.StatusBadGateway,
		paper.SchemaViolation:   http.StatusBadGateway,
	}
	for kind, status := range cases {
		gw := &stubGateway{out: paper.Failed(&paper.Failure{Kind: kind, Message: "boom", RetryAfter: 1500 * time.Millisecond})}
		rec := post(router(gw, nil, Options{}), "/v1/generate-paper", body, nil)
		if rec.Code != status {
			t.Fatalf("%s: expected %d, got %d", kind, status, rec.Code)
		}
		var f struct {
			Kind      string `json:"kind"`
			Message   string `json:"message"`
			Retryable bool   `json:"retryable"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &f); err != nil {
			t.Fatalf("%s: decode: %v", kind, err)
		}
		if f.Kind != string(kind) || f.Message != "boom" {
			t.Fatalf("%s: unexpected body %s", kind, rec.Body.String())
		}
		if f.Retryable != kind.Transient() {
			t.Fatalf("%s: expected retryable=%v", kind, kind.Transient())
		}
		if kind == paper.RateLimited && rec.Header().Get("Retry-After") != "2" {
			t.Fatalf("expected Retry-After 2, got %q", rec.Header().Get("Retry-After"))
		}
	}
}

func TestGeneratePaperBadJSONSkipsGateway(t *testing.T) {
	gw := &stubGateway{}
	rec := post(router(gw, nil, Options{}), "/v1/generate-paper", `{"files": [`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "InvalidRequest") {
		t.Fatalf("expected InvalidRequest body, got %s", rec.Body.String())
	}
	if gw.calls != 0 {
		t.Fatalf("gateway must not be called for undecodable bodies")
	}
}

func TestGeneratePaperBodyLimit(t *testing.T) {
	gw := &stubGateway{}
	rec := post(router(gw, nil, Options{MaxBodyBytes: 16}), "/v1/generate-paper", body, nil)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "exceeds 16 bytes") {
		t.Fatalf("expected body limit error, got %d %s", rec.Code, rec.Body.String())
	}
}

func getWithToken(h http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPapersRoutes(t *testing.T) {
	id := uuid.New()
	papers := &stubPapers{recs: map[uuid.UUID]store.Record{id: {ID: id, Engine: "gemini", ClientKey: "203.0.113.7"}}}
	h := router(&stubGateway{}, papers, Options{PapersToken: "s3cret"})

	cases := []struct {
		path string
		want int
	}{
		{"/v1/papers", http.StatusOK},
		{"/v1/papers/" + id.String(), http.StatusOK},
		{"/v1/papers/" + uuid.NewString(), http.StatusNotFound},
		{"/v1/papers/not-a-uuid", http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := getWithToken(h, tc.path, "s3cret")
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.want, rec.Code)
		}
		if strings.Contains(rec.Body.String(), "203.0.113.7") || strings.Contains(rec.Body.String(), "clientKey") {
			t.Fatalf("%s: client key leaked: %s", tc.path, rec.Body.String())
		}
	}

	for _, token := range []string{"", "wrong"} {
		if rec := getWithToken(h, "/v1/papers", token); rec.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401, got %d", token, rec.Code)
		}
	}

	// without a store or a token the routes are not mounted
	if rec := getWithToken(router(&stubGateway{}, nil, Options{PapersToken: "s3cret"}), "/v1/papers", "s3cret"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without store, got %d", rec.Code)
	}
	if rec := getWithToken(router(&stubGateway{}, papers, Options{}), "/v1/papers", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without token, got %d", rec.Code)
	}
}

func TestGeneratePaperWritesBackendDocument(t *testing.T) {
	raw := `{"title":"Quiz","questions":[{"id":"q1","type":"TRUE_FALSE","options":[],"explanation":"","marks":1}]}`
	gw := &stubGateway{out: paper.SuccessJSON(paper.QuestionPaper{Title: "Quiz"}, json.RawMessage(raw))}
	rec := post(router(gw, nil, Options{}), "/v1/generate-paper", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != raw {
		t.Fatalf("body changed:\n got %s\nwant %s", rec.Body.String(), raw)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	router(&stubGateway{}, nil, Options{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("expected ok, got %d %q", rec.Code, rec.Body.String())
	}

	failing := Options{Ping: func(context.Context) error { return context.DeadlineExceeded }}
	rec = httptest.NewRecorder()
	router(&stubGateway{}, nil, failing).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/v1/generate-paper", nil)
	req.Header.Set("Origin", "https://paperai.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	router(&stubGateway{}, nil, Options{}).ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("missing CORS allow-origin header")
	}
}
