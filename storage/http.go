package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MaxPayloadBytes is the largest state the KV service accepts.
const MaxPayloadBytes = 5 << 20

// ErrPayloadTooLarge is returned for states over MaxPayloadBytes.
var ErrPayloadTooLarge = errors.New("state payload too large")

// HTTPStore talks to the state KV service: GET and POST /api/state,
// POST /api/reset.
type HTTPStore struct {
	base   string
	client *http.Client
}

func NewHTTPStore(baseURL string, timeout time.Duration) *HTTPStore {
	return &HTTPStore{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPStore) Init(_ context.Context) error {
	if s.base == "" {
		return errors.New("http store url is required")
	}
	if _, err := url.ParseRequestURI(s.base); err != nil {
		return fmt.Errorf("http store url: %w", err)
	}
	return nil
}

func (s *HTTPStore) endpoint(path, key string) string {
	return s.base + path + "?key=" + url.QueryEscape(key)
}

func (s *HTTPStore) Save(ctx context.Context, key string, data []byte) error {
	if len(data) > MaxPayloadBytes {
		return fmt.Errorf("save %s: %w (%d bytes)", key, ErrPayloadTooLarge, len(data))
	}
	return s.post(ctx, s.endpoint("/api/state", key), data)
}

// Load treats an empty body or the service's empty marker "[]" as no state.
func (s *HTTPStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint("/api/state", key), nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("load %s: unexpected status %s", key, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxPayloadBytes+1))
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("[]")) {
		return nil, false, nil
	}
	return body, true, nil
}

func (s *HTTPStore) Delete(ctx context.Context, key string) error {
	return s.post(ctx, s.endpoint("/api/reset", key), nil)
}

func (s *HTTPStore) post(ctx context.Context, endpoint string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("post %s: %w", endpoint, ErrPayloadTooLarge)
	case resp.StatusCode/100 != 2:
		return fmt.Errorf("post %s: unexpected status %s", endpoint, resp.Status)
	}
	return nil
}
