package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"conference-assistant/internal/resilience"
)

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
		WithBaseURL(srv.URL),
	}, opts...)
	return NewClient(opts...)
}

// ---------------------------------------------------------------------------
// Detect
// ---------------------------------------------------------------------------

func TestClient_Detect_PicksMostConfident(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/detect", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "¿Cómo va mi hijo en matemáticas?", body["q"])
		require.Equal(t, "secret", body["api_key"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"language":"pt","confidence":12.5},{"language":"ES","confidence":91}]`))
	}))
	defer srv.Close()

	lang, err := newTestClient(t, srv, WithAPIKey("secret")).Detect(context.Background(), "¿Cómo va mi hijo en matemáticas?")
	require.NoError(t, err)
	require.Equal(t, "es", lang)
}

func TestClient_Detect_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Detect(context.Background(), "hello")
	require.ErrorContains(t, err, "no language")
}

func TestClient_Detect_EmptyText(t *testing.T) {
	_, err := NewClient().Detect(context.Background(), "  ")
	require.ErrorContains(t, err, "empty")
}

func TestClient_Detect_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-json`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Detect(context.Background(), "hello")
	require.ErrorContains(t, err, "invalid JSON")
}

// ---------------------------------------------------------------------------
// Translate
// ---------------------------------------------------------------------------

func TestClient_Translate_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/translate", r.URL.Path)
		var body translateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, translateRequest{Q: "Good grades", Source: "en", Target: "fr", Format: "text"}, body)
		_, _ = w.Write([]byte(`{"translatedText":"Bonnes notes"}`))
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv).Translate(context.Background(), "Good grades", "EN", "fr")
	require.NoError(t, err)
	require.Equal(t, "Bonnes notes", out)
}

func TestClient_Translate_SameLanguageSkipsRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv).Translate(context.Background(), "unchanged", "en", "en")
	require.NoError(t, err)
	require.Equal(t, "unchanged", out)
	require.False(t, called)
}

func TestClient_Translate_EmptySourceIsAuto(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body translateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "auto", body.Source)
		_, _ = w.Write([]byte(`{"translatedText":"hola"}`))
	}))
	defer srv.Close()

	out, err := newTestClient(t, srv).Translate(context.Background(), "hello", "", "es")
	require.NoError(t, err)
	require.Equal(t, "hola", out)
}

func TestClient_Translate_MissingTarget(t *testing.T) {
	_, err := NewClient().Translate(context.Background(), "hello", "en", "")
	require.ErrorContains(t, err, "target")
}

func TestClient_Translate_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"Too many requests"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).Translate(context.Background(), "hello", "en", "de")
	var se *HTTPStatusError
	require.ErrorAs(t, err, &se)
	require.Equal(t, http.StatusTooManyRequests, se.HTTPStatusCode())
	require.Contains(t, err.Error(), "429")
}

func TestClient_Translate_RetriesServerError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"translatedText":"Hallo"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, WithPolicy(resilience.New(resilience.Config{MaxRetries: 1})))
	out, err := c.Translate(context.Background(), "Hello", "en", "de")
	require.NoError(t, err)
	require.Equal(t, "Hallo", out)
	require.Equal(t, 2, calls)
}
