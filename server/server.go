// Package server is a client for the Jellyfin-compatible media server API:
// item lookup, playback negotiation and playback session reports.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/reel-cli/reel/constant"
	"github.com/reel-cli/reel/log"
	"github.com/reel-cli/reel/util"
	"github.com/sirupsen/logrus"
)

// Identity describes this client to the server.
type Identity struct {
	Client   string
	Device   string
	DeviceID string
	Version  string
	Token    string
}

// Header renders the MediaBrowser authorization header.
func (i Identity) Header() string {
	parts := []string{
		fmt.Sprintf("Client=%q", i.Client),
		fmt.Sprintf("Device=%q", i.Device),
		fmt.Sprintf("DeviceId=%q", i.DeviceID),
		fmt.Sprintf("Version=%q", i.Version),
	}
	if i.Token != "" {
		parts = append(parts, fmt.Sprintf("Token=%q", i.Token))
	}
	return "MediaBrowser " + strings.Join(parts, ", ")
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client talks to one media server as one user.
type Client struct {
	base     *url.URL
	userID   string
	identity Identity
	http     *http.Client
}

// New validates baseURL and returns a client. httpClient may be nil.
func New(baseURL, userID string, identity Identity, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("server url is not set")
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("server url must be absolute: %s", baseURL)
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		base:     u,
		userID:   userID,
		identity: identity,
		http:     httpClient,
	}, nil
}

// BaseURL returns the server root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// UserID returns the user the client acts as.
func (c *Client) UserID() string {
	return c.userID
}

// DeviceID returns the device id sent with every request.
func (c *Client) DeviceID() string {
	return c.identity.DeviceID
}

// AuthHeaders returns the headers that authenticate a request made outside this client, e.g. by the player.
func (c *Client) AuthHeaders() map[string]string {
	return map[string]string{"Authorization": c.identity.Header()}
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req.Header.Set("Authorization", c.identity.Header())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", constant.UserAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Fields(logrus.Fields{"op": op, "method": method, "path": path}).Debug("server request")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer util.Ignore(resp.Body.Close)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Op: op, StatusCode: resp.StatusCode}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}
