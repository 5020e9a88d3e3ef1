package user

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store used in tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64]Record
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64]Record), now: time.Now}
}

// FindByChatID returns a copy of the stored record.
func (m *MemoryStore) FindByChatID(_ context.Context, chatID int64) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[chatID]
	if !ok {
		return nil, nil
	}
	return rec.clone(), nil
}

// Upsert merges fields the same way SQLStore does.
func (m *MemoryStore) Upsert(_ context.Context, chatID int64, fields Fields) error {
	cols, err := fields.columns()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	rec, ok := m.records[chatID]
	if !ok {
		rec = Record{ChatID: chatID, Status: StatusUnregistered, CreatedAt: now}
	}
	for _, c := range cols {
		str, _ := c.value.(string)
		var val *string
		if c.value != nil {
			val = &str
		}
		switch c.name {
		case "username":
			rec.Username = str
		case "status":
			rec.Status = Status(str)
		case string(FieldPhoneNumber):
			rec.PhoneNumber = val
		case string(FieldDepositMethod):
			rec.DepositMethod = val
		case string(FieldAccountNumber):
			rec.AccountNumber = val
		case string(FieldAmount):
			rec.Amount = val
		case string(FieldDepositAttemptID):
			rec.DepositAttemptID = val
		case string(FieldTransferConfirmation):
			rec.TransferConfirmation = nil
			if val != nil {
				if rec.TransferConfirmation, err = decodeConfirmation(str); err != nil {
					return err
				}
			}
		}
	}
	rec.UpdatedAt = now
	m.records[chatID] = rec
	return nil
}

// Len reports the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (r Record) clone() *Record {
	out := r
	out.PhoneNumber = clonePtr(r.PhoneNumber)
	out.DepositMethod = clonePtr(r.DepositMethod)
	out.AccountNumber = clonePtr(r.AccountNumber)
	out.Amount = clonePtr(r.Amount)
	out.DepositAttemptID = clonePtr(r.DepositAttemptID)
	out.TransferConfirmation = clonePtr(r.TransferConfirmation)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
