package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/bingobot/core/logger"
	"log/slog"
)

// SQLStore keeps users in the users table of a postgres or sqlite3 database.
type SQLStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLStore)(nil)

// NewSQLStore wraps an open connection; the schema comes from migrations.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

type userRow struct {
	ChatID               int64          `db:"chat_id"`
	Username             string         `db:"username"`
	Status               string         `db:"status"`
	PhoneNumber          sql.NullString `db:"phone_number"`
	DepositMethod        sql.NullString `db:"deposit_method"`
	AccountNumber        sql.NullString `db:"account_number"`
	Amount               sql.NullString `db:"amount"`
	TransferConfirmation sql.NullString `db:"transfer_confirmation"`
	DepositAttemptID     sql.NullString `db:"deposit_attempt_id"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

const selectUser = `SELECT chat_id, username, status, phone_number, deposit_method, account_number,
	amount, transfer_confirmation, deposit_attempt_id, created_at, updated_at
	FROM users WHERE chat_id = ?`

// FindByChatID loads a record; a missing row yields nil, nil.
func (s *SQLStore) FindByChatID(ctx context.Context, chatID int64) (*Record, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(selectUser), chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: find user %d: %w", ErrStoreUnavailable, chatID, err)
	}
	rec, err := row.record()
	if err != nil {
		return nil, fmt.Errorf("%w: find user %d: %w", ErrStoreUnavailable, chatID, err)
	}
	return rec, nil
}

// Upsert inserts the record or merges the set fields into the existing row.
func (s *SQLStore) Upsert(ctx context.Context, chatID int64, fields Fields) error {
	cols, err := fields.columns()
	if err != nil {
		return fmt.Errorf("%w: upsert user %d: %w", ErrStoreUnavailable, chatID, err)
	}

	names := make([]string, 0, len(cols)+1)
	marks := make([]string, 0, len(cols)+1)
	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+1)
	names = append(names, "chat_id")
	marks = append(marks, "?")
	args = append(args, chatID)
	for _, c := range cols {
		names = append(names, c.name)
		marks = append(marks, "?")
		sets = append(sets, c.name+" = excluded."+c.name)
		args = append(args, c.value)
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")

	query := "INSERT INTO users (" + strings.Join(names, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")" +
		" ON CONFLICT (chat_id) DO UPDATE SET " + strings.Join(sets, ", ")

	start := time.Now()
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("%w: upsert user %d: %w", ErrStoreUnavailable, chatID, err)
	}
	if logger.ShouldSampleDebug() {
		logger.Debug(ctx, "store", "user.upsert",
			slog.String("status", "ok"),
			slog.Int64("chat_id", chatID),
			slog.Int("fields", len(cols)),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return nil
}

// CountActive reports how many users completed registration.
func (s *SQLStore) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind("SELECT COUNT(*) FROM users WHERE status = ?"), string(StatusActive)); err != nil {
		return 0, fmt.Errorf("%w: count users: %w", ErrStoreUnavailable, err)
	}
	return n, nil
}

func (r userRow) record() (*Record, error) {
	rec := &Record{
		ChatID:           r.ChatID,
		Username:         r.Username,
		Status:           Status(r.Status),
		PhoneNumber:      nullable(r.PhoneNumber),
		DepositMethod:    nullable(r.DepositMethod),
		AccountNumber:    nullable(r.AccountNumber),
		Amount:           nullable(r.Amount),
		DepositAttemptID: nullable(r.DepositAttemptID),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.TransferConfirmation.Valid && r.TransferConfirmation.String != "" {
		c, err := decodeConfirmation(r.TransferConfirmation.String)
		if err != nil {
			return nil, err
		}
		rec.TransferConfirmation = c
	}
	return rec, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
