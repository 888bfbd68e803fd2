package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slidecoffee/brew-service/internal/brew"
	"github.com/slidecoffee/brew-service/internal/events"
	"github.com/slidecoffee/brew-service/internal/oidc"
	"github.com/slidecoffee/brew-service/internal/quota"
	"github.com/slidecoffee/brew-service/internal/runs"
)

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--server", srv.URL, "--token", "tok"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestPlansCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/plans", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"plans": quota.Plans()})
	}))
	defer srv.Close()

	out, err := run(t, srv, "plans")
	require.NoError(t, err)
	require.Contains(t, out, "espresso")
	require.Contains(t, out, "unlimited")
}

func TestGenerateStreamsEvents(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate-slides-stream", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("X-Run-Id", "run-1")
		s := events.NewSSESink(w)
		_ = s.Send(events.Start{Message: "Starting"})
		_ = s.Send(events.OutlineComplete{Outline: brew.Outline{Title: "Deck"}, SlideCount: 1})
		_ = s.Send(events.SlideGenerated{SlideNumber: 1, TotalSlides: 1, Slide: brew.Slide{Title: "Intro"}, Progress: 100})
		_ = s.Send(events.Complete{Presentation: events.PresentationRef{ID: "p1", Title: "Deck", SlideCount: 1}})
	}))
	defer srv.Close()

	out, err := run(t, srv, "generate", "--topic", "Coffee history", "--slides", "4", "--no-research")
	require.NoError(t, err)
	require.Equal(t, "Coffee history", got["topic"])
	require.Equal(t, false, got["enableResearch"])
	require.EqualValues(t, 4, got["slideCount"])
	require.Contains(t, out, "run run-1")
	require.Contains(t, out, `outline: "Deck" with 1 slides`)
	require.Contains(t, out, "[1/1] Intro")
	require.Contains(t, out, "done: presentation p1")
}

func TestGenerateReportsStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := events.NewSSESink(w)
		_ = s.Send(events.Error{Message: "Failed to generate presentation outline"})
	}))
	defer srv.Close()

	out, err := run(t, srv, "generate", "--topic", "Coffee history", "--json")
	require.ErrorContains(t, err, "Failed to generate presentation outline")
	require.Contains(t, out, `{"type":"error"`)
}

func TestGenerateQuotaRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"Quota exceeded","message":"Monthly presentation limit reached","limit":1,"current":1,"upgradeRequired":true}`))
	}))
	defer srv.Close()

	_, err := run(t, srv, "generate", "--topic", "Coffee history")
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.Status)
	require.Equal(t, "Monthly presentation limit reached", apiErr.Message)
}

func TestGenerateFromDraftAndPlan(t *testing.T) {
	var paths []string
	var bodies []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&b)
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, b)
		_ = events.NewSSESink(w).Send(events.Complete{})
	}))
	defer srv.Close()

	_, err := run(t, srv, "generate", "--draft", "d1")
	require.NoError(t, err)

	plan := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(plan, []byte(`{"title":"Plan","slides":[{"title":"A"}]}`), 0o600))
	_, err = run(t, srv, "generate", "--plan", plan)
	require.NoError(t, err)

	require.Equal(t, []string{"/api/brews/generate-from-outline", "/api/generate-slides-stream"}, paths)
	require.Equal(t, "d1", bodies[0]["draftId"])
	require.Equal(t, "Plan", bodies[1]["presentationPlan"].(map[string]interface{})["title"])

	_, err = run(t, srv, "generate")
	require.ErrorContains(t, err, "--topic")
}

func TestRunsCommands(t *testing.T) {
	rec := &runs.Record{RunID: "r1", Topic: "Coffee", Status: runs.StatusCompleted, Phase: "completed", SlideCount: 3, PresentationID: "p1", StartedAt: time.Now()}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/brews/runs", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "5", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode([]*runs.Record{rec})
	})
	mux.HandleFunc("/api/brews/runs/r1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(rec)
	})
	mux.HandleFunc("/api/brews/runs/r1/events", func(w http.ResponseWriter, r *http.Request) {
		start, _ := events.Encode(events.Start{Message: "Starting"})
		done, _ := events.Encode(events.Complete{Presentation: events.PresentationRef{ID: "p1"}})
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"runId": "r1", "events": []json.RawMessage{start, done}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := run(t, srv, "runs", "list", "--limit", "5")
	require.NoError(t, err)
	require.Contains(t, out, "r1")
	require.Contains(t, out, "completed")

	out, err = run(t, srv, "runs", "show", "r1")
	require.NoError(t, err)
	require.Contains(t, out, "presentation: p1")

	out, err = run(t, srv, "runs", "events", "r1")
	require.NoError(t, err)
	require.Contains(t, out, "start: Starting")
	require.Contains(t, out, "done: presentation p1")

	_, err = run(t, srv, "runs", "show", "missing")
	require.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"token", "--sub", "u1", "--plan", "americano", "--secret", "dev"})
	require.NoError(t, cmd.Execute())

	raw := strings.TrimSpace(out.String())
	tok, err := oidc.NewHMACVerifier([]byte("dev"), "").Verify(context.Background(), raw)
	require.NoError(t, err)
	var claims map[string]interface{}
	require.NoError(t, tok.Claims(&claims))
	require.Equal(t, "americano", claims["plan"])
}
