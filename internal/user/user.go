// Package user persists user records keyed by chat id.
package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrStoreUnavailable wraps every read or write failure of a Store.
var ErrStoreUnavailable = errors.New("user store unavailable")

// Status is the registration status of a user.
type Status string

const (
	StatusActive       Status = "active"
	StatusUnregistered Status = "unregistered"
)

// Confirmation kinds.
const (
	ConfirmationPhoto = "photo"
	ConfirmationText  = "text"
)

// Confirmation is the proof of transfer sent at the end of a deposit cycle.
type Confirmation struct {
	Type    string `json:"type"`
	FileID  string `json:"file_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// PhotoConfirmation tags a screenshot by its file id.
func PhotoConfirmation(fileID string) Confirmation {
	return Confirmation{Type: ConfirmationPhoto, FileID: fileID}
}

// TextConfirmation tags a pasted confirmation message.
func TextConfirmation(message string) Confirmation {
	return Confirmation{Type: ConfirmationText, Message: message}
}

func (c Confirmation) encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeConfirmation(raw string) (*Confirmation, error) {
	var c Confirmation
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode transfer_confirmation: %w", err)
	}
	return &c, nil
}

// Record is the durable state of one user.
type Record struct {
	ChatID      int64
	Username    string
	Status      Status
	PhoneNumber *string

	DepositMethod        *string
	AccountNumber        *string
	Amount               *string
	TransferConfirmation *Confirmation
	DepositAttemptID     *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the record belongs to a registered user.
func (r *Record) Active() bool {
	return r != nil && r.Status == StatusActive
}

// Field names an optional column that Fields.Clear can reset.
type Field string

const (
	FieldPhoneNumber          Field = "phone_number"
	FieldDepositMethod        Field = "deposit_method"
	FieldAccountNumber        Field = "account_number"
	FieldAmount               Field = "amount"
	FieldTransferConfirmation Field = "transfer_confirmation"
	FieldDepositAttemptID     Field = "deposit_attempt_id"
)

// Fields is a partial update. Nil members are left untouched.
type Fields struct {
	Username             *string
	Status               *Status
	PhoneNumber          *string
	DepositMethod        *string
	AccountNumber        *string
	Amount               *string
	TransferConfirmation *Confirmation
	DepositAttemptID     *string

	// Clear resets the listed columns to null; a value set above wins over a clear.
	Clear []Field
}

// Ptr returns a pointer to v, handy for building Fields.
func Ptr[T any](v T) *T {
	return &v
}

type column struct {
	name  string
	value any
}

// columns lists the assignments in a stable order with nil meaning null.
func (f Fields) columns() ([]column, error) {
	cleared := make(map[Field]bool, len(f.Clear))
	for _, name := range f.Clear {
		switch name {
		case FieldPhoneNumber, FieldDepositMethod, FieldAccountNumber,
			FieldAmount, FieldTransferConfirmation, FieldDepositAttemptID:
			cleared[name] = true
		default:
			return nil, fmt.Errorf("unknown field %q", name)
		}
	}

	var cols []column
	if f.Username != nil {
		cols = append(cols, column{"username", *f.Username})
	}
	if f.Status != nil {
		cols = append(cols, column{"status", string(*f.Status)})
	}
	optional := []struct {
		field Field
		value *string
	}{
		{FieldPhoneNumber, f.PhoneNumber},
		{FieldDepositMethod, f.DepositMethod},
		{FieldAccountNumber, f.AccountNumber},
		{FieldAmount, f.Amount},
	}
	for _, o := range optional {
		switch {
		case o.value != nil:
			cols = append(cols, column{string(o.field), *o.value})
		case cleared[o.field]:
			cols = append(cols, column{string(o.field), nil})
		}
	}
	switch {
	case f.TransferConfirmation != nil:
		raw, err := f.TransferConfirmation.encode()
		if err != nil {
			return nil, err
		}
		cols = append(cols, column{string(FieldTransferConfirmation), raw})
	case cleared[FieldTransferConfirmation]:
		cols = append(cols, column{string(FieldTransferConfirmation), nil})
	}
	switch {
	case f.DepositAttemptID != nil:
		cols = append(cols, column{string(FieldDepositAttemptID), *f.DepositAttemptID})
	case cleared[FieldDepositAttemptID]:
		cols = append(cols, column{string(FieldDepositAttemptID), nil})
	}
	return cols, nil
}

// Store is a keyed user repository.
type Store interface {
	// FindByChatID returns nil, nil when no record exists.
	FindByChatID(ctx context.Context, chatID int64) (*Record, error)
	// Upsert merges the set fields into the record, creating it when absent.
	Upsert(ctx context.Context, chatID int64, fields Fields) error
}
