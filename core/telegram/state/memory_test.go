package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableDefaultsToNone(t *testing.T) {
	tbl := NewTable()
	s := tbl.Get(42)
	assert.Equal(t, StateNone, s.State)
	assert.False(t, s.Active())
	assert.Equal(t, 0, tbl.Len())
}

func TestTableSetAndClear(t *testing.T) {
	tbl := NewTable()
	tbl.Set(1, Session{State: StateAwaitingAmount, Method: "telebirr"})
	assert.Equal(t, Session{State: StateAwaitingAmount, Method: "telebirr"}, tbl.Get(1))
	assert.Equal(t, 1, tbl.Len())

	tbl.Set(1, Session{State: StateNone, Method: "telebirr"})
	assert.Equal(t, 0, tbl.Len())
	assert.Equal(t, StateNone, tbl.Get(1).State)

	tbl.Set(2, Session{State: StateAwaitingAccountNumber})
	tbl.Clear(2)
	tbl.Clear(3)
	assert.Equal(t, 0, tbl.Len())
}

func TestTableConcurrentAccess(t *testing.T) {
	tbl := NewTable()
	var wg sync.WaitGroup
	for i := int64(0); i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			tbl.Set(id, Session{State: StateAwaitingTransferMessage})
			_ = tbl.Get(id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, tbl.Len())
}
