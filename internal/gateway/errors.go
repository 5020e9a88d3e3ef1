package gateway

import (
	"crypto/tls"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/m3rciful/bingobot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrTransport marks a failed or rejected getUpdates/deleteWebhook call.
	ErrTransport = errors.New("gateway: transport failure")
	// ErrDeliveryFailed marks an outbound message that did not reach Telegram.
	ErrDeliveryFailed = errors.New("gateway: delivery failed")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// callError tags an underlying failure with a sentinel while keeping both in the chain.
type callError struct {
	op       string
	sentinel error
	err      error
}

func (e *callError) Error() string {
	return e.op + ": " + Redact(e.err.Error())
}

func (e *callError) Unwrap() []error {
	return []error{e.sentinel, e.err}
}

func wrapCall(op string, sentinel, err error) error {
	if err == nil {
		return nil
	}
	return &callError{op: op, sentinel: sentinel, err: err}
}

// Redact hides bot tokens embedded in request URLs or error strings.
func Redact(msg string) string {
	return tokenRe.ReplaceAllString(msg, "bot<redacted>")
}

// Classify labels a gateway failure for logs: timeout, dns, dial, tls, http_4xx, http_5xx or unknown.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	switch kind := netutil.Kind(err); kind {
	case "timeout", "dns", "dial", "canceled":
		return kind
	}

	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return "tls"
	}

	status := StatusCode(err)
	switch {
	case status == http.StatusTooManyRequests:
		return "flood"
	case status >= 500:
		return "http_5xx"
	case status >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// StatusCode extracts the Bot API error code from err, or 0 when there is none.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}

	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var floodErr tele.FloodError
	if errors.As(err, &floodErr) {
		return http.StatusTooManyRequests
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.code
	}

	// telebot reports unknown API errors as "telegram: <description> (<code>)"
	msg := err.Error()
	lastOpen := strings.LastIndex(msg, "(")
	lastClose := strings.LastIndex(msg, ")")
	if lastOpen >= 0 && lastClose > lastOpen+1 {
		if code, convErr := strconv.Atoi(strings.TrimSpace(msg[lastOpen+1 : lastClose])); convErr == nil {
			return code
		}
	}
	return 0
}

// statusError is a non-ok Bot API response observed by the raw HTTP calls.
type statusError struct {
	code        int
	description string
}

func (e *statusError) Error() string {
	return "telegram: " + e.description + " (" + strconv.Itoa(e.code) + ")"
}
