package gateway

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
	"time"

	"github.com/m3rciful/bingobot/core/logger"
	coretelegram "github.com/m3rciful/bingobot/core/telegram"
	"github.com/m3rciful/bingobot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
	"log/slog"
)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

// Options configures a Client.
type Options struct {
	Token  string
	APIURL string
	// PollTimeout is the longest getUpdates wait the client must tolerate.
	PollTimeout time.Duration
	// HTTPClient overrides the tuned default client, mostly for tests.
	HTTPClient *http.Client
}

// Client is a stateless Bot API client.
type Client struct {
	token  string
	apiURL string
	http   *http.Client
	bot    *tele.Bot
}

// New builds a Client without contacting the API.
func New(opts Options) (*Client, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, errors.New("gateway: empty bot token")
	}
	apiURL := strings.TrimRight(strings.TrimSpace(opts.APIURL), "/")
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = coretelegram.BuildHTTPClient(opts.PollTimeout)
	}

	bot, err := tele.NewBot(tele.Settings{
		URL:     apiURL,
		Token:   token,
		Client:  httpClient,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: bot initialization failed: %s", Redact(err.Error()))
	}

	return &Client{
		token:  token,
		apiURL: apiURL,
		http:   httpClient,
		bot:    bot,
	}, nil
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

// Fetch long-polls getUpdates starting at offset and waits up to timeout for events.
// Every failure is wrapped in ErrTransport.
func (c *Client) Fetch(ctx context.Context, offset int, timeout time.Duration) ([]Event, error) {
	params := map[string]int{
		"offset":  offset,
		"timeout": int(timeout / time.Second),
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, wrapCall("getUpdates", ErrTransport, err)
	}

	raw, err := c.call(ctx, "getUpdates", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, wrapCall("getUpdates", ErrTransport, err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, wrapCall("getUpdates", ErrTransport, fmt.Errorf("decode updates: %w", err))
	}
	events := make([]Event, 0, len(items))
	for _, item := range items {
		ev, err := decodeEvent(item)
		if err != nil {
			logger.Warn(ctx, "tg", "update.undecodable",
				slog.Int("update_id", ev.UpdateID),
				slog.String("err", err.Error()),
			)
			if ev.UpdateID == 0 {
				continue
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

// decodeEvent decodes one update. When the payload is malformed the
// returned event still carries the update id, without a message.
func decodeEvent(item json.RawMessage) (Event, error) {
	var u tele.Update
	err := json.Unmarshal(item, &u)
	if err == nil {
		return eventFromUpdate(u), nil
	}
	var head struct {
		ID int `json:"update_id"`
	}
	if herr := json.Unmarshal(item, &head); herr != nil {
		return Event{}, err
	}
	return Event{UpdateID: head.ID}, err
}

// Send delivers a Markdown message with an optional keyboard. Failures are
// wrapped in ErrDeliveryFailed and are never retried here.
func (c *Client) Send(ctx context.Context, chatID int64, text string, kb *keyboard.Layout) error {
	if err := ctx.Err(); err != nil {
		return wrapCall("sendMessage", ErrDeliveryFailed, err)
	}
	start := time.Now()
	_, err := c.bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{
		ParseMode:   tele.ModeMarkdown,
		ReplyMarkup: kb.Markup(),
	})
	if err != nil {
		return wrapCall("sendMessage", ErrDeliveryFailed, err)
	}
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, "tg", "send.success",
			slog.Int64("chat_id", chatID),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return nil
}

// ClearWebhook removes a previously registered webhook so getUpdates is allowed.
// Pending updates are kept.
func (c *Client) ClearWebhook(ctx context.Context) error {
	form := url.Values{"drop_pending_updates": {"false"}}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := c.call(ctx, "deleteWebhook", "application/x-www-form-urlencoded", strings.NewReader(form.Encode())); err != nil {
		return wrapCall("deleteWebhook", ErrTransport, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, contentType string, body io.Reader) (json.RawMessage, error) {
	endpoint := c.apiURL + "/bot" + c.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out apiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &statusError{code: resp.StatusCode, description: resp.Status}
		}
		return nil, fmt.Errorf("decode %s response: %w", method, err)
	}
	if !out.OK {
		code := out.ErrorCode
		if code == 0 {
			code = resp.StatusCode
		}
		return nil, &statusError{code: code, description: out.Description}
	}
	return out.Result, nil
}
