// Package network provides the tuned HTTP clients shared by the media server client and the release check.
package network

import (
	"net/http"
	"time"
)

// Client is the shared HTTP client for short API calls.
var Client = &http.Client{
	Timeout:   time.Minute,
	Transport: newTransport(),
}

// New returns a client with the given timeout. With fingerprint set, https requests
// are sent over a browser-like TLS handshake for servers behind picky reverse proxies.
func New(timeout time.Duration, fingerprint bool) *http.Client {
	var transport http.RoundTripper = newTransport()
	if fingerprint {
		transport = newFingerprintTransport(transport)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

func newTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 20
	t.MaxIdleConnsPerHost = 10
	t.IdleConnTimeout = 90 * time.Second
	t.ResponseHeaderTimeout = 30 * time.Second
	t.ExpectContinueTimeout = time.Second
	return t
}
