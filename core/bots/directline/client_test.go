package directline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/koscakluka/ema-speechbot/core/sessions"
)

func TestHTTPClientRoutes(t *testing.T) {
	var posted Activity
	mux := http.NewServeMux()
	mux.HandleFunc("POST /conversations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, ConversationResponse{Token: "t1", ConversationID: "c1", ExpiresIn: 1800, StreamURL: "wss://stream/c1"})
	})
	mux.HandleFunc("GET /conversations/c1", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("watermark"); got != "7" {
			t.Errorf("expected watermark 7, got %q", got)
		}
		writeJSON(t, w, ConversationResponse{Token: "t2", ConversationID: "c1", StreamURL: "wss://stream/c1?watermark=7"})
	})
	mux.HandleFunc("POST /tokens/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, ConversationResponse{Token: "t3", ConversationID: "c1", ExpiresIn: 900})
	})
	mux.HandleFunc("POST /conversations/c1/activities", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("expected JSON content type, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&posted); err != nil {
			t.Errorf("failed to decode activity: %v", err)
		}
		writeJSON(t, w, map[string]string{"id": "c1|0000001"})
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("expected bearer credential, got %q", got)
		}
		mux.ServeHTTP(w, r)
	}))
	defer server.Close()

	client := NewHTTPClient()
	client.BaseURL = server.URL
	ctx := context.Background()

	started, err := client.StartConversation(ctx, "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started.ConversationID != "c1" || started.Token != "t1" || started.ExpiresIn != 1800 || started.StreamURL != "wss://stream/c1" {
		t.Fatalf("unexpected start response %#v", started)
	}

	resumed, err := client.GetConversation(ctx, "secret", "c1", "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resumed.Token != "t2" {
		t.Fatalf("unexpected resume response %#v", resumed)
	}

	refreshed, err := client.RefreshToken(ctx, "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if refreshed.Token != "t3" || refreshed.ExpiresIn != 900 {
		t.Fatalf("unexpected refresh response %#v", refreshed)
	}

	activityID, err := client.PostActivity(ctx, "secret", "c1", NewUserMessage("hello", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if activityID != "c1|0000001" {
		t.Fatalf("unexpected activity id %q", activityID)
	}
	if posted.Type != ActivityTypeMessage || posted.Text != "hello" || posted.From == nil || posted.From.ID != DefaultUserName {
		t.Fatalf("unexpected posted activity %#v", posted)
	}
}

func TestHTTPClientReportsFailedRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := NewHTTPClient()
	client.BaseURL = server.URL

	_, err := client.StartConversation(context.Background(), "bad")
	if !errors.Is(err, sessions.ErrRequest) {
		t.Fatalf("expected request error, got %v", err)
	}
}

func TestHTTPClientReportsUndecodableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer server.Close()

	client := NewHTTPClient()
	client.BaseURL = server.URL

	_, err := client.StartConversation(context.Background(), "secret")
	if !errors.Is(err, sessions.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func writeJSON(t *testing.T, w http.ResponseWriter, body any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}
