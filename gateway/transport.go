package gateway

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/rs/zerolog/log"
)

// NewHTTPClient builds the client used for API and token calls. In DEV every
// request is logged with its method, path, status and duration.
func NewHTTPClient(cfg config.Config) *http.Client {
	var transport http.RoundTripper = requestIDTransport{next: http.DefaultTransport}
	if cfg.GetEnv() == "DEV" {
		transport = loggingTransport{next: transport}
	}
	return &http.Client{
		Timeout:   cfg.GetRequestTimeout(),
		Transport: transport,
	}
}

// requestIDTransport tags each outbound request with an X-Request-ID unless one is set.
type requestIDTransport struct {
	next http.RoundTripper
}

func (t requestIDTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get("X-Request-ID") != "" {
		return t.next.RoundTrip(r)
	}
	r = r.Clone(r.Context())
	r.Header.Set("X-Request-ID", uuid.New().String())
	return t.next.RoundTrip(r)
}

type loggingTransport struct {
	next http.RoundTripper
}

func (t loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(r)
	if err != nil {
		logError(r.Method, r.URL.Path, err.Error())
		return nil, err
	}
	logRoute(r.Method, r.URL.Path, resp.StatusCode, time.Since(start))
	return resp, nil
}

func displayMethod(method string) string {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		return color + paddedMethod + ResetColor
	}
	return Gray + paddedMethod + ResetColor
}

func logRoute(method, path string, status int, elapsed time.Duration) {
	log.Info().Msgf("[%-19s] %s %d %s", displayMethod(method), path, status, elapsed.Round(time.Millisecond))
}

func logError(method, path, error string) {
	log.Error().Msgf("[%-19s] %s %s", displayMethod(method), path, Red+error+ResetColor)
}
