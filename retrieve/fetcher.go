package retrieve

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds a plain GET end to end.
const DefaultTimeout = 18 * time.Second

// maxBody caps how much of a response body is read.
const maxBody = 10 << 20

// UserAgents is the pool a random client identifier is drawn from per request.
var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17 Safari/605.1.15",
	"Mozilla/5.0 (Linux; Android 14; SM-G991B) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124 Mobile Safari/537.36",
}

var jsonContentTypes = map[string]bool{
	"application/json":         true,
	"application/ld+json":      true,
	"application/vnd.api+json": true,
}

// Fetcher performs the plain-channel GET.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
	ua     func() string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets a custom HTTP client.
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout sets the client timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithUserAgent pins the User-Agent instead of drawing from UserAgents.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.ua = func() string { return ua } }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher creates a Fetcher that follows redirects with DefaultTimeout.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{Timeout: DefaultTimeout},
		logger: slog.Default(),
		ua:     randomUserAgent,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func randomUserAgent() string {
	return UserAgents[rand.IntN(len(UserAgents))]
}

// Fetch GETs pageURL. It never returns an error: transport failures come
// back as a Response with Status -1 and an "[HTTP_ERROR]" body.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) *Response {
	start := time.Now()
	resp, err := f.do(ctx, pageURL)
	if err != nil {
		f.logger.Debug("retrieve: fetch failed", "url", pageURL, "error", err)
		return &Response{
			URL:      pageURL,
			FinalURL: pageURL,
			Status:   StatusTransportError,
			Headers:  map[string]string{},
			Body:     "[HTTP_ERROR] " + err.Error(),
			Channel:  ChannelHTTP,
			Took:     time.Since(start),
		}
	}
	resp.Took = time.Since(start)
	f.logger.Debug("retrieve: fetched",
		"url", pageURL, "final", resp.FinalURL, "status", resp.Status,
		"size", len(resp.Body), "json", resp.IsJSON)
	return resp
}

func (f *Fetcher) do(ctx context.Context, pageURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua())
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "es-MX,es;q=0.9,en;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		headers[strings.ToLower(k)] = strings.Join(v, ", ")
	}

	out := &Response{
		URL:      pageURL,
		FinalURL: resp.Request.URL.String(),
		Status:   resp.StatusCode,
		Headers:  headers,
		Body:     string(body),
		Channel:  ChannelHTTP,
	}

	ct := strings.ToLower(strings.TrimSpace(strings.Split(headers["content-type"], ";")[0]))
	if jsonContentTypes[ct] {
		var v any
		if err := json.Unmarshal(body, &v); err == nil {
			out.IsJSON = true
			out.JSON = v
		}
	}
	return out, nil
}
