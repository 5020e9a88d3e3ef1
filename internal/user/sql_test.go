package user

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	coreconfig "github.com/m3rciful/bingobot/core/config"
	"github.com/m3rciful/bingobot/core/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	cfg := coreconfig.DatabaseConfig{
		Driver:         coreconfig.DriverSQLite,
		Path:           filepath.Join(t.TempDir(), "users.db"),
		MaxConnections: 1,
		MigrationsDir:  filepath.Join("..", "..", "migrations"),
	}
	require.NoError(t, database.RunMigrations(cfg))
	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLStore(db)
}

// storeContract runs the same expectations against every Store implementation.
func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("absent", func(t *testing.T) {
		s := newStore(t)
		rec, err := s.FindByChatID(ctx, 1)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("register", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, 7, Fields{
			Username:    Ptr("abebe"),
			Status:      Ptr(StatusActive),
			PhoneNumber: Ptr("+251911000000"),
		}))
		rec, err := s.FindByChatID(ctx, 7)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.True(t, rec.Active())
		assert.Equal(t, "abebe", rec.Username)
		assert.Equal(t, "+251911000000", *rec.PhoneNumber)
		assert.Nil(t, rec.DepositMethod)
		assert.Nil(t, rec.TransferConfirmation)
	})

	t.Run("partial merge keeps other fields", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, 7, Fields{Username: Ptr("abebe"), Status: Ptr(StatusActive)}))
		require.NoError(t, s.Upsert(ctx, 7, Fields{AccountNumber: Ptr("0912345678")}))
		require.NoError(t, s.Upsert(ctx, 7, Fields{TransferConfirmation: Ptr(PhotoConfirmation("file-1"))}))

		rec, err := s.FindByChatID(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, StatusActive, rec.Status)
		assert.Equal(t, "abebe", rec.Username)
		assert.Equal(t, "0912345678", *rec.AccountNumber)
		assert.Equal(t, &Confirmation{Type: ConfirmationPhoto, FileID: "file-1"}, rec.TransferConfirmation)
	})

	t.Run("upsert creates unregistered record", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, 9, Fields{Amount: Ptr("500")}))
		rec, err := s.FindByChatID(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, StatusUnregistered, rec.Status)
		assert.False(t, rec.Active())
		assert.Equal(t, "500", *rec.Amount)
	})

	t.Run("clear resets columns", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Upsert(ctx, 3, Fields{
			Status:               Ptr(StatusActive),
			AccountNumber:        Ptr("111"),
			Amount:               Ptr("20"),
			TransferConfirmation: Ptr(TextConfirmation("paid")),
		}))
		require.NoError(t, s.Upsert(ctx, 3, Fields{
			DepositMethod:    Ptr("Telebirr [+10% Bonus]"),
			DepositAttemptID: Ptr("attempt-2"),
			Clear:            []Field{FieldAccountNumber, FieldAmount, FieldTransferConfirmation, FieldDepositMethod},
		}))
		rec, err := s.FindByChatID(ctx, 3)
		require.NoError(t, err)
		assert.Nil(t, rec.AccountNumber)
		assert.Nil(t, rec.Amount)
		assert.Nil(t, rec.TransferConfirmation)
		assert.Equal(t, "Telebirr [+10% Bonus]", *rec.DepositMethod)
		assert.Equal(t, "attempt-2", *rec.DepositAttemptID)
	})

	t.Run("unknown clear field", func(t *testing.T) {
		s := newStore(t)
		err := s.Upsert(ctx, 3, Fields{Clear: []Field{"balance"}})
		require.Error(t, err)
	})
}

func TestSQLStoreContract(t *testing.T) {
	storeContract(t, func(t *testing.T) Store { return openSQLStore(t) })
}

func TestMemoryStoreContract(t *testing.T) {
	storeContract(t, func(*testing.T) Store { return NewMemoryStore() })
}

func TestSQLStoreCountActive(t *testing.T) {
	ctx := context.Background()
	s := openSQLStore(t)
	require.NoError(t, s.Upsert(ctx, 1, Fields{Status: Ptr(StatusActive)}))
	require.NoError(t, s.Upsert(ctx, 2, Fields{Username: Ptr("x")}))
	n, err := s.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLStoreClosedDBIsUnavailable(t *testing.T) {
	ctx := context.Background()
	s := openSQLStore(t)
	require.NoError(t, s.db.Close())

	_, err := s.FindByChatID(ctx, 1)
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	err = s.Upsert(ctx, 1, Fields{Username: Ptr("x")})
	assert.True(t, errors.Is(err, ErrStoreUnavailable))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Upsert(ctx, 1, Fields{AccountNumber: Ptr("111")}))
	rec, err := s.FindByChatID(ctx, 1)
	require.NoError(t, err)
	*rec.AccountNumber = "mutated"

	again, err := s.FindByChatID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "111", *again.AccountNumber)
	assert.Equal(t, 1, s.Len())
}
