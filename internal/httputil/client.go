package httputil

import (
	"net/http"
	"time"
)

const DefaultTimeout = 30 * time.Second

// NewClient returns an HTTP client with the standard upstream timeout.
func NewClient() *http.Client {
	return NewClientTimeout(DefaultTimeout)
}

// NewClientTimeout returns an HTTP client with an explicit timeout. The
// realtime device poller uses a short one; a console on the LAN either
// answers immediately or not at all.
func NewClientTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}
