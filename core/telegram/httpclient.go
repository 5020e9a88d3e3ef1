package telegram

import (
	"net"
	"net/http"
	"path"
	"time"

	"github.com/m3rciful/bingobot/core/telegram/netutil"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 90 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultRetryAttempts     = 3
	defaultRetryBackoff      = 500 * time.Millisecond

	// pollTimeoutMargin leaves room for the server to answer after the long-poll window closes.
	pollTimeoutMargin = 15 * time.Second
)

// BuildHTTPClient returns an HTTP client tuned for Bot API calls.
// The overall timeout is the long-poll window plus a margin, so a getUpdates
// call that waits the full window is never cut short by the client.
func BuildHTTPClient(pollTimeout time.Duration) *http.Client {
	return buildHTTPClient(pollTimeout, defaultRetryBackoff)
}

func buildHTTPClient(pollTimeout, backoff time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if pollTimeout < 0 {
		pollTimeout = 0
	}
	return &http.Client{
		Timeout: pollTimeout + pollTimeoutMargin,
		Transport: &retryTransport{
			base:       transport,
			maxRetries: defaultRetryAttempts,
			backoff:    backoff,
		},
	}
}

// replayable lists Bot API methods that are safe to send twice.
var replayable = map[string]bool{
	"getUpdates":    true,
	"deleteWebhook": true,
	"getMe":         true,
}

// retryTransport repeats requests that failed before any response arrived
// with a transient dial or timeout error. Other methods, sendMessage among
// them, are repeated only when the request never left the client.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	attempts := t.maxRetries + 1
	shouldRetry := netutil.NotSent
	if replayable[path.Base(req.URL.Path)] {
		shouldRetry = netutil.ShouldRetry
	}
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		currReq := req
		if attempt > 1 {
			currReq = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, err
				}
				currReq.Body = body
			} else if req.Body != nil && req.Body != http.NoBody {
				return nil, lastErr
			}
		}

		resp, err := base.RoundTrip(currReq)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil || !shouldRetry(err) || attempt == attempts {
			break
		}

		delay := t.backoff * time.Duration(attempt)
		if delay <= 0 {
			continue
		}
		timer := time.NewTimer(delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}
