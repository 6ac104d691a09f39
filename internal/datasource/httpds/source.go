package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Source is a datasource.Source that downloads one URL.
type Source struct {
	client  *Client
	url     string
	headers http.Header
}

// NewSource binds a URL (and optional extra headers) to c.
func NewSource(c *Client, url string, headers http.Header) *Source {
	return &Source{client: c, url: url, headers: headers}
}

// Open GETs the URL. Any non-2xx final status is an error carrying a short
// prefix of the body.
func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url, s.headers)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("httpds: GET %s: status %d: %s", s.url, resp.StatusCode, snippet)
	}
	return resp.Body, nil
}

// LastModified issues a GET and reads the Last-Modified header. A server
// that omits the header yields the zero time and no error.
func (s *Source) LastModified(ctx context.Context) (time.Time, error) {
	rc, err := s.client.Get(ctx, s.url, s.headers)
	if err != nil {
		return time.Time{}, err
	}
	defer rc.Body.Close()
	v := rc.Header.Get("Last-Modified")
	if v == "" {
		return time.Time{}, nil
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("httpds: bad Last-Modified %q: %w", v, err)
	}
	return t, nil
}
