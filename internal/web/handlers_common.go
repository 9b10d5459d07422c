package web

// Shared request parsing and response helpers used across handlers.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// maxBodySize caps request bodies of the editor endpoints.
const maxBodySize = 1 << 20

var errBadRequest = errors.New("bad request")

// form is a flat request body. JSON objects and urlencoded forms both
// decode into it so HTMX and API clients share the handlers.
type form map[string]string

// readForm decodes the request body into a form.
func readForm(w http.ResponseWriter, r *http.Request) (form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		raw := map[string]any{}
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: decode body: %v", errBadRequest, err)
		}
		f := make(form, len(raw))
		for k, v := range raw {
			switch val := v.(type) {
			case string:
				f[k] = val
			case nil:
			default:
				f[k] = fmt.Sprint(val)
			}
		}
		return f, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("%w: parse form: %v", errBadRequest, err)
	}
	f := make(form, len(r.Form))
	for k := range r.Form {
		f[k] = r.Form.Get(k)
	}
	return f, nil
}

// require returns the trimmed value of key or a bad request error.
func (f form) require(key string) (string, error) {
	v := strings.TrimSpace(f[key])
	if v == "" {
		return "", fmt.Errorf("%w: %s is required", errBadRequest, key)
	}
	return v, nil
}

// int parses key as an integer. ok is false when the key is absent.
func (f form) int(key string) (n int, ok bool, err error) {
	v := strings.TrimSpace(f[key])
	if v == "" {
		return 0, false, nil
	}
	n, err = strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s must be a number", errBadRequest, key)
	}
	return n, true, nil
}

// ptr returns a pointer to the value of key, or nil when it is absent.
func (f form) ptr(key string) *string {
	v, ok := f[key]
	if !ok {
		return nil
	}
	return &v
}

// bool parses a checkbox or JSON boolean. Returns nil when absent.
func (f form) bool(key string) *bool {
	v, ok := f[key]
	if !ok {
		return nil
	}
	b := v == "true" || v == "on" || v == "1"
	return &b
}

// intParam parses a URL parameter as a non-negative integer.
func intParam(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: invalid %s", errBadRequest, name)
	}
	return n, nil
}

// clientIP returns the request address without its port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
