package browser

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// urlSequence returns each URL in turn, then repeats the last one.
func urlSequence(urls ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		u := urls[i]
		if i < len(urls)-1 {
			i++
		}
		return u, nil
	}
}

func TestStabilizeURL_FollowsClientRedirects(t *testing.T) {
	current := urlSequence(
		"https://example.com/alice",
		"https://example.com/alice",
		"https://example.com/login?next=alice",
		"https://example.com/404",
	)

	got := StabilizeURL(context.Background(), current, 2*time.Millisecond, 20*time.Millisecond, 2*time.Second)
	if got != "https://example.com/404" {
		t.Errorf("final URL: got %q, want %q", got, "https://example.com/404")
	}
}

func TestStabilizeURL_DeadlineWhenNeverStable(t *testing.T) {
	n := 0
	var mu sync.Mutex
	current := func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "https://spa.example.com/#" + string(rune('a'+n%26)), nil
	}

	start := time.Now()
	got := StabilizeURL(context.Background(), current, 2*time.Millisecond, time.Second, 60*time.Millisecond)
	elapsed := time.Since(start)

	if got == "" {
		t.Error("expected last seen URL, got empty")
	}
	if elapsed >= time.Second {
		t.Errorf("stabilisation ignored deadline: took %s", elapsed)
	}
}

func TestStabilizeURL_ReadErrorsKeepLastURL(t *testing.T) {
	first := true
	current := func() (string, error) {
		if first {
			first = false
			return "https://example.com/bob", nil
		}
		return "", errors.New("target closed")
	}

	got := StabilizeURL(context.Background(), current, 2*time.Millisecond, 10*time.Millisecond, time.Second)
	if got != "https://example.com/bob" {
		t.Errorf("got %q, want last good URL", got)
	}
}

func TestStabilizeURL_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := StabilizeURL(ctx, urlSequence("https://example.com/x"), time.Hour, time.Hour, time.Hour)
	if got != "https://example.com/x" {
		t.Errorf("got %q", got)
	}
}

func TestTimingDefaults(t *testing.T) {
	var tm Timing
	tm.defaults()
	if tm.StableFor != 900*time.Millisecond {
		t.Errorf("StableFor: got %s", tm.StableFor)
	}
	if tm.StabilizeBy != 12*time.Second {
		t.Errorf("StabilizeBy: got %s", tm.StabilizeBy)
	}
	if tm.DOMReady != 20*time.Second {
		t.Errorf("DOMReady: got %s", tm.DOMReady)
	}

	custom := Timing{StableFor: 700 * time.Millisecond}
	custom.defaults()
	if custom.StableFor != 700*time.Millisecond {
		t.Errorf("custom StableFor overwritten: %s", custom.StableFor)
	}
}

func TestAvailable_Remote(t *testing.T) {
	if !Available(Config{RemoteURL: "ws://127.0.0.1:9222/devtools/browser/x"}) {
		t.Error("remote endpoint should always count as available")
	}
}

func TestManagerClosed(t *testing.T) {
	m := NewManager(Config{RemoteURL: "ws://127.0.0.1:1/none"})
	m.Close()
	if _, err := m.Browser(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("got %v, want ErrClosed", err)
	}
}
