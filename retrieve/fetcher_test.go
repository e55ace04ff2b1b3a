package retrieve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetch_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/u/ghost", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/not-found", http.StatusFound)
	})
	mux.HandleFunc("/not-found", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("<html><title>Page not found</title></html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp := NewFetcher().Fetch(context.Background(), srv.URL+"/u/ghost")
	if resp.Status != 404 {
		t.Errorf("status: got %d, want 404", resp.Status)
	}
	if resp.FinalURL != srv.URL+"/not-found" {
		t.Errorf("final url: got %q", resp.FinalURL)
	}
	if resp.URL != srv.URL+"/u/ghost" {
		t.Errorf("url: got %q", resp.URL)
	}
	if resp.Channel != ChannelHTTP {
		t.Errorf("channel: got %q", resp.Channel)
	}
	if !strings.Contains(resp.Body, "Page not found") {
		t.Errorf("body: got %q", resp.Body)
	}
}

func TestFetch_SendsBrowserLikeHeaders(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
	}))
	defer srv.Close()

	NewFetcher().Fetch(context.Background(), srv.URL)

	found := false
	for _, ua := range UserAgents {
		if ua == gotUA {
			found = true
		}
	}
	if !found {
		t.Errorf("user agent %q not drawn from pool", gotUA)
	}
	if gotLang == "" {
		t.Error("expected Accept-Language header")
	}
}

func TestFetch_JSONObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"id": 42, "username": "alice"}`))
	}))
	defer srv.Close()

	resp := NewFetcher().Fetch(context.Background(), srv.URL)
	if !resp.IsJSON {
		t.Fatal("expected IsJSON")
	}
	obj, ok := resp.JSONObject()
	if !ok {
		t.Fatal("expected JSON object")
	}
	if obj["username"] != "alice" {
		t.Errorf("username: got %v", obj["username"])
	}
	if resp.Headers["content-type"] == "" {
		t.Error("headers should be lower-cased")
	}
}

func TestFetch_JSONOnlyForJSONContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(`{"id": 42}`))
	}))
	defer srv.Close()

	resp := NewFetcher().Fetch(context.Background(), srv.URL)
	if resp.IsJSON {
		t.Error("text/plain body must not be treated as JSON")
	}
}

func TestFetch_InvalidJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	resp := NewFetcher().Fetch(context.Background(), srv.URL)
	if resp.IsJSON {
		t.Error("unparseable body must not be flagged JSON")
	}
	if resp.Status != 200 {
		t.Errorf("status: got %d", resp.Status)
	}
}

func TestFetch_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	resp := NewFetcher().Fetch(context.Background(), addr+"/alice")
	if resp.Status != StatusTransportError {
		t.Errorf("status: got %d, want -1", resp.Status)
	}
	if !strings.HasPrefix(resp.Body, "[HTTP_ERROR]") {
		t.Errorf("body: got %q", resp.Body)
	}
	if !resp.Failed() {
		t.Error("Failed() should be true")
	}
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	resp := NewFetcher(WithTimeout(50*time.Millisecond)).Fetch(context.Background(), srv.URL)
	if resp.Status != StatusTransportError {
		t.Errorf("status: got %d, want -1", resp.Status)
	}
}
