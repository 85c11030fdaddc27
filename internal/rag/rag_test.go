package rag

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"normativa-rag/internal/config"
	"normativa-rag/internal/models"
	"normativa-rag/internal/provider"
)

// fakeRetriever serves a canned fragment set and records the requested k.
type fakeRetriever struct {
	fragments []models.RetrievedFragment
	err       error
	lastK     int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, k int) ([]models.RetrievedFragment, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.fragments) {
		return f.fragments[:k], nil
	}
	return f.fragments, nil
}

func corpus() []models.RetrievedFragment {
	return []models.RetrievedFragment{
		{Fragment: models.Fragment{ID: "regimen.pdf:0", DocumentID: "regimen.pdf", Text: "La nota mínima de aprobación es 4.0."}, Score: 0.92},
		{Fragment: models.Fragment{ID: "regimen.pdf:1", DocumentID: "regimen.pdf", Text: "Las calificaciones se expresan con un decimal."}, Score: 0.85},
		{Fragment: models.Fragment{ID: "admision.pdf:0", DocumentID: "admision.pdf", Text: "La matrícula se realiza en enero."}, Score: 0.71},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Providers: map[string]config.ProviderConfig{
			"chatgpt":  {Model: "gpt-4o-mini", APIKeyEnv: "NORMATIVA_TEST_OPENAI_KEY"},
			"deepseek": {Model: "deepseek-chat", APIKeyEnv: "NORMATIVA_TEST_DEEPSEEK_KEY"},
		},
		Generation: config.GenerationConfig{Temperature: 0.2, MaxTokens: 256, TimeoutSecs: 5},
		TopK:       3,
	}
}

func TestAskWithMockProvider(t *testing.T) {
	retriever := &fakeRetriever{fragments: corpus()}
	svc := NewService(retriever, testConfig())

	resp, err := svc.Ask(context.Background(), "¿Cuál es la nota mínima de aprobación?", "mock", 2)
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if retriever.lastK != 2 {
		t.Errorf("retriever asked for k=%d, want 2", retriever.lastK)
	}
	if resp.Answer == "" {
		t.Fatal("empty answer")
	}
	if len(resp.Citations) == 0 || resp.Citations[0] != "regimen.pdf:0" {
		t.Errorf("citations did not resolve against retrieved fragments: %v", resp.Citations)
	}
	if resp.RetrievalLatency < 0 {
		t.Error("retrieval latency not recorded")
	}
}

func TestAskClampsK(t *testing.T) {
	retriever := &fakeRetriever{fragments: corpus()}
	svc := NewService(retriever, testConfig())

	if _, err := svc.Ask(context.Background(), "consulta", "mock", 0); err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if retriever.lastK != 1 {
		t.Errorf("k=0 should clamp to 1, retriever saw %d", retriever.lastK)
	}
}

func TestAskSurfacesRetrievalError(t *testing.T) {
	wantErr := errors.New("backend offline")
	svc := NewService(&fakeRetriever{err: wantErr}, testConfig())

	_, err := svc.Ask(context.Background(), "consulta", "mock", 3)
	if !errors.Is(err, wantErr) {
		t.Fatalf("retrieval failure must propagate, got %v", err)
	}
}

func TestAskUnknownProvider(t *testing.T) {
	svc := NewService(&fakeRetriever{fragments: corpus()}, testConfig())
	if _, err := svc.Ask(context.Background(), "consulta", "gemini", 3); err == nil {
		t.Fatal("unknown provider must be rejected")
	}
}

func TestCompareOneSideFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	t.Setenv("NORMATIVA_TEST_DEEPSEEK_KEY", "test-key")
	cfg := testConfig()
	pc := cfg.Providers["deepseek"]
	pc.BaseURL = srv.URL
	cfg.Providers["deepseek"] = pc

	svc := NewService(&fakeRetriever{fragments: corpus()}, cfg)
	sideA, sideB, err := svc.Compare(context.Background(), "¿Cuál es la nota mínima?", "mock", "deepseek", 3)
	if err != nil {
		t.Fatalf("compare failed outright: %v", err)
	}

	if sideA.Err != nil || sideA.Response == nil {
		t.Fatalf("healthy side was dropped: err=%v", sideA.Err)
	}
	if sideA.Response.Answer == "" {
		t.Error("healthy side returned an empty answer")
	}

	var unavailable *provider.UnavailableError
	if !errors.As(sideB.Err, &unavailable) {
		t.Fatalf("failing side should report UnavailableError, got %v", sideB.Err)
	}
	if sideB.Response != nil {
		t.Error("failing side must not carry a response")
	}
}

func TestCompareDisabledSide(t *testing.T) {
	t.Setenv("NORMATIVA_TEST_OPENAI_KEY", "")
	svc := NewService(&fakeRetriever{fragments: corpus()}, testConfig())

	sideA, sideB, err := svc.Compare(context.Background(), "¿Cuál es la nota mínima?", "mock", "chatgpt", 3)
	if err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if sideA.Err != nil || sideA.Response == nil {
		t.Fatalf("mock side failed: %v", sideA.Err)
	}
	if sideB.Err != nil {
		t.Fatalf("disabled side must not error: %v", sideB.Err)
	}
	if sideB.Response == nil || !sideB.Response.Disabled {
		t.Error("disabled side must carry the sentinel response")
	}
	if sideB.Response.Answer != provider.DisabledAnswer {
		t.Errorf("unexpected sentinel answer: %q", sideB.Response.Answer)
	}
}

func TestCompareSharesRetrieval(t *testing.T) {
	retriever := &fakeRetriever{fragments: corpus()}

	calls := 0
	countingRetriever := retrieverFunc(func(ctx context.Context, query string, k int) ([]models.RetrievedFragment, error) {
		calls++
		return retriever.Retrieve(ctx, query, k)
	})
	svc := NewService(countingRetriever, testConfig())

	if _, _, err := svc.Compare(context.Background(), "consulta de matricula", "mock", "mock", 2); err != nil {
		t.Fatalf("compare failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("comparison ran retrieval %d times, want 1", calls)
	}
}

type retrieverFunc func(ctx context.Context, query string, k int) ([]models.RetrievedFragment, error)

func (f retrieverFunc) Retrieve(ctx context.Context, query string, k int) ([]models.RetrievedFragment, error) {
	return f(ctx, query, k)
}
