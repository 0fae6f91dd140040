package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

const jsonAPIContentType = "application/vnd.api+json"

// RequestSpec describes one API call. Route is relative to the resource prefix (e.g. "me", "posts/1").
type RequestSpec struct {
	Method string
	Route  string
	Body   any        // JSON-encoded; []byte and json.RawMessage are sent as-is
	Query  url.Values // Appended to the URL
}

func (s RequestSpec) validate() error {
	if s.Method == "" {
		return fmt.Errorf("%w: method is required", autherrors.ErrInvalidRequest)
	}
	if s.Route == "" {
		return fmt.Errorf("%w: route is required", autherrors.ErrInvalidRequest)
	}
	return nil
}

func (s RequestSpec) method() string {
	return strings.ToUpper(s.Method)
}

// isWrite reports whether the method carries a JSON:API body.
func isWrite(method string) bool {
	return method == http.MethodPost || method == http.MethodPatch || method == http.MethodPut
}

// Response is a successful API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

func encodeBody(body any) (io.Reader, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return bytes.NewReader(b), nil
	case json.RawMessage:
		return bytes.NewReader(b), nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	return bytes.NewReader(data), nil
}

func (g *Gateway) resourceURL(spec RequestSpec) string {
	u := g.baseURL + g.cfg.GetResourcePrefix() + strings.TrimLeft(spec.Route, "/")
	if len(spec.Query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + spec.Query.Encode()
	}
	return u
}
