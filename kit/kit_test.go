package kit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	chained := Chain(mw("a"), mw("b"), mw("c"))(base)
	resp, err := chained(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	expected := []string{"a_before", "b_before", "c_before", "endpoint", "c_after", "b_after", "a_after"}
	if len(order) != len(expected) {
		t.Fatalf("order length: got %d, want %d", len(order), len(expected))
	}
	for i, v := range expected {
		if order[i] != v {
			t.Fatalf("order[%d]: got %q, want %q", i, order[i], v)
		}
	}
}

func TestChain_ErrorPropagation(t *testing.T) {
	errFail := errors.New("fail")
	base := func(_ context.Context, _ any) (any, error) {
		return nil, errFail
	}

	noop := func(next Endpoint) Endpoint { return next }
	chained := Chain(noop)(base)

	_, err := chained(context.Background(), nil)
	if !errors.Is(err, errFail) {
		t.Fatalf("error: got %v, want %v", err, errFail)
	}
}

func TestContext_Transport_Default(t *testing.T) {
	ctx := context.Background()
	if v := GetTransport(ctx); v != "http" {
		t.Fatalf("default transport: got %q, want 'http'", v)
	}
}

func TestContext_Transport_Set(t *testing.T) {
	ctx := WithTransport(context.Background(), "mcp")
	if v := GetTransport(ctx); v != "mcp" {
		t.Fatalf("transport: got %q", v)
	}
}

func TestContext_RequestID(t *testing.T) {
	if v := GetRequestID(context.Background()); v != "" {
		t.Fatalf("request_id default: got %q", v)
	}
	ctx := WithRequestID(context.Background(), "req_abc")
	if v := GetRequestID(ctx); v != "req_abc" {
		t.Fatalf("request_id: got %q", v)
	}
}

func TestLogging_PassesThrough(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	errFail := errors.New("fail")

	ok := Logging(logger, "probe")(func(_ context.Context, _ any) (any, error) { return 1, nil })
	if resp, err := ok(context.Background(), nil); err != nil || resp != 1 {
		t.Fatalf("got %v, %v", resp, err)
	}
	bad := Logging(logger, "probe")(func(_ context.Context, _ any) (any, error) { return nil, errFail })
	if _, err := bad(WithRequestID(context.Background(), "req_1"), nil); !errors.Is(err, errFail) {
		t.Fatalf("error: got %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "endpoint=probe") || !strings.Contains(out, "request_id=req_1") {
		t.Errorf("log output missing fields:\n%s", out)
	}
}

func TestHTTPHandler(t *testing.T) {
	endpoint := func(_ context.Context, req any) (any, error) {
		name := req.(string)
		if name == "missing" {
			return nil, &HTTPError{Status: http.StatusNotFound, Err: errors.New("not found")}
		}
		return map[string]string{"hello": name, "via": "http"}, nil
	}
	decode := func(r *http.Request) (any, error) {
		name := r.URL.Query().Get("name")
		if name == "" {
			return nil, errors.New("name required")
		}
		return name, nil
	}
	h := HTTPHandler(endpoint, decode)

	tests := []struct {
		query  string
		status int
		body   string
	}{
		{"?name=alice", http.StatusOK, `"hello":"alice"`},
		{"", http.StatusBadRequest, "name required"},
		{"?name=missing", http.StatusNotFound, "not found"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil))
		if rec.Code != tt.status {
			t.Errorf("%q: status %d, want %d", tt.query, rec.Code, tt.status)
		}
		if !strings.Contains(rec.Body.String(), tt.body) {
			t.Errorf("%q: body %q missing %q", tt.query, rec.Body.String(), tt.body)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type %q", ct)
		}
	}
}
