package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailku_backend/internals/features/finance/collections/model"
)

func TestSessionStore_SweepIdle(t *testing.T) {
	clock := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	st := NewSessionStore(30 * time.Minute)
	st.now = func() time.Time { return clock }

	idle := &Session{ID: uuid.New()}
	active := &Session{ID: uuid.New()}
	st.Put(idle)
	st.Put(active)

	clock = clock.Add(20 * time.Minute)
	s, err := st.Acquire(active.ID, uuid.Nil)
	require.NoError(t, err)
	st.Release(s)

	clock = clock.Add(15 * time.Minute)
	assert.Equal(t, 1, st.Sweep())
	assert.Equal(t, 1, st.Len())

	_, err = st.Acquire(idle.ID, uuid.Nil)
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
}

func TestSessionStore_SweepSkipsBusySession(t *testing.T) {
	clock := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	st := NewSessionStore(time.Minute)
	st.now = func() time.Time { return clock }

	s := &Session{ID: uuid.New()}
	st.Put(s)
	held, err := st.Acquire(s.ID, uuid.Nil)
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	assert.Zero(t, st.Sweep())
	st.Release(held)
}

func TestSessionStore_CustomerOf(t *testing.T) {
	st := NewSessionStore(0)
	s := &Session{ID: uuid.New(), Context: model.SessionContext{CustomerID: "C-5"}}
	st.Put(s)

	assert.Equal(t, "C-5", st.CustomerOf(s.ID.String()))
	assert.Empty(t, st.CustomerOf("junk"))
	assert.Empty(t, st.CustomerOf(uuid.NewString()))
}
