// Package conversation drives each chat through registration and the deposit flow.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	coreconfig "github.com/m3rciful/bingobot/core/config"
	"github.com/m3rciful/bingobot/core/logger"
	"github.com/m3rciful/bingobot/core/telegram/keyboard"
	"github.com/m3rciful/bingobot/core/telegram/state"
	"github.com/m3rciful/bingobot/internal/gateway"
	"github.com/m3rciful/bingobot/internal/user"
	"log/slog"
)

// Sender delivers an outbound message.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string, kb *keyboard.Layout) error
}

// Options configures an Engine.
type Options struct {
	Store  user.Store
	Sender Sender
	// Sessions defaults to a fresh in-memory table.
	Sessions state.Manager
	// GameHost is the host of the play link, without scheme.
	GameHost string
	// Accounts maps deposit.accounts keys to official receiving accounts.
	Accounts map[string]string
	// NewAttemptID defaults to random UUIDs.
	NewAttemptID func() string
}

// Engine is the per-chat state machine. It is safe for concurrent use
// as long as events of one chat are not handled concurrently.
type Engine struct {
	store     user.Store
	sender    Sender
	sessions  state.Manager
	gameHost  string
	accounts  map[string]string
	attemptID func() string
}

// New validates opts and builds an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("conversation: nil user store")
	}
	if opts.Sender == nil {
		return nil, errors.New("conversation: nil sender")
	}
	e := &Engine{
		store:     opts.Store,
		sender:    opts.Sender,
		sessions:  opts.Sessions,
		gameHost:  strings.TrimSpace(opts.GameHost),
		accounts:  make(map[string]string, len(coreconfig.DefaultAccounts)),
		attemptID: opts.NewAttemptID,
	}
	if e.sessions == nil {
		e.sessions = state.NewTable()
	}
	if e.gameHost == "" {
		e.gameHost = coreconfig.DefaultGameHost
	}
	for k, v := range coreconfig.DefaultAccounts {
		e.accounts[k] = v
	}
	for k, v := range opts.Accounts {
		if v != "" {
			e.accounts[k] = v
		}
	}
	if e.attemptID == nil {
		e.attemptID = uuid.NewString
	}
	return e, nil
}

// Sessions exposes the session table, mainly for stats.
func (e *Engine) Sessions() state.Manager {
	return e.sessions
}

// turn carries one event through the engine and collects non-fatal failures.
type turn struct {
	e      *Engine
	ctx    context.Context
	ev     gateway.Event
	handle string
	errs   []error
}

// Handle processes one event. Store and delivery failures never stop the turn;
// they are joined into the returned error after every step has run.
func (e *Engine) Handle(ctx context.Context, ev gateway.Event) error {
	if !ev.HasMessage || ev.ChatID == 0 {
		return nil
	}
	t := &turn{e: e, ctx: ctx, ev: ev, handle: ev.Handle}
	if t.handle == "" {
		t.handle = unknownHandle
	}
	ctx = logger.WithHandler(ctx, "conversation")
	t.ctx = ctx

	before := e.sessions.Get(ev.ChatID)
	tok := Classify(ev.Text)
	t.dispatch(before, tok)

	after := e.sessions.Get(ev.ChatID)
	if before.State != after.State {
		logger.Debug(ctx, "engine", "transition",
			slog.String("token", tok.Kind.String()),
			slog.String("state", string(before.State)),
			slog.String("next_state", string(after.State)),
			slog.String("text", logger.SanitizeLimit(ev.Text, 64)),
		)
	}
	return errors.Join(t.errs...)
}

func (t *turn) dispatch(session state.Session, tok Token) {
	switch {
	case t.ev.Contact != nil:
		t.register()
	case tok.Kind == TokenBackToMenu:
		t.e.sessions.Clear(t.ev.ChatID)
		t.send(mainMenu())
	case session.Active():
		t.continueFlow(session)
	default:
		t.keyword(tok)
	}
}

func (t *turn) register() {
	chatID := t.ev.ChatID
	t.upsert(user.Fields{
		Username:    user.Ptr(t.handle),
		Status:      user.Ptr(user.StatusActive),
		PhoneNumber: user.Ptr(t.ev.Contact.PhoneNumber),
	})
	t.e.sessions.Clear(chatID)
	logger.Info(t.ctx, "engine", "user.registered", slog.String("status", "ok"))
	t.send(reply{text: textRegistered})
	t.send(mainMenu())
}

// continueFlow consumes the event as flow data; events without the payload
// the current step needs leave the session untouched.
func (t *turn) continueFlow(session state.Session) {
	chatID := t.ev.ChatID
	text := t.ev.Text

	switch session.State {
	case state.StateAwaitingAccountNumber:
		if text == "" {
			return
		}
		t.upsert(user.Fields{AccountNumber: user.Ptr(text)})
		t.send(reply{text: textAskAmount})
		t.e.sessions.Set(chatID, state.Session{State: state.StateAwaitingAmount, Method: session.Method})

	case state.StateAwaitingAmount:
		if text == "" {
			return
		}
		t.upsert(user.Fields{Amount: user.Ptr(text)})
		t.send(depositInstructions(text, t.e.accountFor(session.Method)))
		t.e.sessions.Set(chatID, state.Session{State: state.StateAwaitingTransferMessage, Method: session.Method})

	case state.StateAwaitingTransferMessage:
		var confirmation user.Confirmation
		switch {
		case t.ev.Photo != nil:
			confirmation = user.PhotoConfirmation(t.ev.Photo.FileID)
		case text != "":
			confirmation = user.TextConfirmation(text)
		default:
			return
		}
		t.upsert(user.Fields{TransferConfirmation: &confirmation})
		t.send(reply{text: textTransferSaved})
		t.e.sessions.Clear(chatID)
		t.send(mainMenu())
		logger.Info(t.ctx, "engine", "deposit.confirmed",
			slog.String("status", "ok"),
			slog.String("method", session.Method),
			slog.String("kind", confirmation.Type),
		)

	default:
		// unknown state left by an older build
		t.e.sessions.Clear(chatID)
	}
}

func (t *turn) keyword(tok Token) {
	switch tok.Kind {
	case TokenStart:
		if t.registered() {
			t.send(mainMenu())
		} else {
			t.send(phonePrompt(textPromptStart))
		}
	case TokenPlay:
		if t.registered() {
			t.send(playLink(t.e.gameHost, t.handle))
		} else {
			t.send(phonePrompt(textPromptPlay))
		}
	case TokenDeposit:
		if t.registered() {
			t.send(depositMenu())
		} else {
			t.send(phonePrompt(textPromptDeposit))
		}
	case TokenSelectMethod:
		if !t.registered() {
			t.send(phonePrompt(textPromptDeposit))
			return
		}
		t.upsert(user.Fields{
			DepositMethod:    user.Ptr(tok.Label),
			DepositAttemptID: user.Ptr(t.e.attemptID()),
			Clear:            []user.Field{user.FieldAccountNumber, user.FieldAmount, user.FieldTransferConfirmation},
		})
		t.send(reply{text: textAskAccount})
		t.e.sessions.Set(t.ev.ChatID, state.Session{State: state.StateAwaitingAccountNumber, Method: tok.Label})
	case TokenComingSoon:
		t.send(comingSoonReply(tok.Label))
	}
}

// registered reports whether an active record exists. A failed read counts as absent.
func (t *turn) registered() bool {
	rec, err := t.e.store.FindByChatID(t.ctx, t.ev.ChatID)
	if err != nil {
		logger.Warn(t.ctx, "engine", "user.lookup",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		t.errs = append(t.errs, err)
		return false
	}
	return rec.Active()
}

func (t *turn) upsert(fields user.Fields) {
	if err := t.e.store.Upsert(t.ctx, t.ev.ChatID, fields); err != nil {
		logger.Warn(t.ctx, "engine", "user.upsert",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		t.errs = append(t.errs, err)
	}
}

func (t *turn) send(r reply) {
	if err := t.e.sender.Send(t.ctx, t.ev.ChatID, r.text, r.keyboard); err != nil {
		t.errs = append(t.errs, fmt.Errorf("send to %d: %w", t.ev.ChatID, err))
	}
}

// accountFor resolves the official account for a method label.
func (e *Engine) accountFor(label string) string {
	method, _ := MethodForLabel(label)
	return e.accounts[method]
}
