package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/advancement/internal/config"
	"github.com/cory-johannsen/advancement/internal/game/gate"
	"github.com/cory-johannsen/advancement/internal/game/progress"
)

func TestBridgeEntity_Push(t *testing.T) {
	e := NewBridgeEntity(1, 4)
	require.NoError(t, e.Push("hello"))
	assert.Equal(t, "hello", <-e.Events())
	assert.Equal(t, int64(1), e.PlayerID())
}

func TestBridgeEntity_PushClosed(t *testing.T) {
	e := NewBridgeEntity(1, 4)
	require.NoError(t, e.Close())
	assert.True(t, e.IsClosed())
	assert.Error(t, e.Push("fail"))
}

func TestBridgeEntity_PushFull(t *testing.T) {
	e := NewBridgeEntity(1, 1)
	require.NoError(t, e.Push("first"))
	err := e.Push("overflow")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "buffer full")
}

func TestBridgeEntity_CloseIdempotent(t *testing.T) {
	e := NewBridgeEntity(1, 4)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.True(t, e.IsClosed())
}

func TestManager_AddPlayer(t *testing.T) {
	m := NewManager()
	sess, err := m.AddPlayer(progress.NewPlayer(1, "Alice"), 10, "alice", "player")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.Username)
	assert.Equal(t, int64(10), sess.AccountID)
	assert.Equal(t, 100, sess.Pools[gate.Health])
	assert.Equal(t, 1, m.PlayerCount())

	sess.Pools[gate.Health] = 5
	assert.Equal(t, 100, DefaultPools[gate.Health], "sessions get their own pools")
}

func TestManager_AddPlayerDuplicate(t *testing.T) {
	m := NewManager()
	_, err := m.AddPlayer(progress.NewPlayer(1, "Alice"), 10, "alice", "player")
	require.NoError(t, err)
	_, err = m.AddPlayer(progress.NewPlayer(1, "Alice"), 10, "alice", "player")
	assert.ErrorContains(t, err, "already connected")
}

func TestManager_RemovePlayer(t *testing.T) {
	m := NewManager()
	sess, err := m.AddPlayer(progress.NewPlayer(1, "Alice"), 10, "alice", "player")
	require.NoError(t, err)

	removed, err := m.RemovePlayer(1)
	require.NoError(t, err)
	assert.Same(t, sess, removed)
	assert.True(t, sess.Entity.IsClosed())
	assert.Zero(t, m.PlayerCount())

	_, err = m.RemovePlayer(1)
	assert.ErrorContains(t, err, "not found")
}

func TestManager_Lookups(t *testing.T) {
	m := NewManager()
	for i, name := range []string{"Cara", "Ash", "Bo"} {
		_, err := m.AddPlayer(progress.NewPlayer(int64(3-i), name), 0, name, "player")
		require.NoError(t, err)
	}

	sess, ok := m.GetPlayerByCharName("ash")
	require.True(t, ok)
	assert.Equal(t, int64(2), sess.Player.ID)
	_, ok = m.GetPlayerByCharName("nobody")
	assert.False(t, ok)

	var names []string
	for _, p := range m.Players() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Bo", "Ash", "Cara"}, names)
}

func TestManager_Notify(t *testing.T) {
	m := NewManager()
	sess, err := m.AddPlayer(progress.NewPlayer(1, "Alice"), 0, "alice", "player")
	require.NoError(t, err)

	m.Notify(1, "You improve your Survival skill to 2.")
	m.Notify(2, "dropped")
	assert.Equal(t, "You improve your Survival skill to 2.", <-sess.Entity.Events())
	assert.Empty(t, sess.Entity.Events())
}

func TestPlayerSession_IsGateActor(t *testing.T) {
	m := NewManager()
	p := progress.NewPlayer(1, "Alice")
	p.Ability("bash").Purchased[0] = true
	sess, err := m.AddPlayer(p, 0, "alice", "player")
	require.NoError(t, err)

	g := gate.New(config.GateConfig{UniversalWait: time.Second}, gate.NewCooldownTracker(nil), zap.NewNop())
	var actor gate.Actor = sess
	require.NoError(t, g.CanUse(actor, "bash", gate.Move, 10, ""))
	assert.ErrorIs(t, g.CanUse(actor, "kick", gate.NoPool, 0, ""), gate.ErrNotPurchased)

	before := time.Now()
	g.Charge(actor, gate.Move, 10, "", 0)
	assert.Equal(t, 90, sess.Pools[gate.Move])
	assert.True(t, sess.LagUntil.After(before))

	sess.BloodInert = true
	assert.ErrorIs(t, g.CanUse(actor, "bash", gate.Blood, 1, ""), gate.ErrBloodInert)
}

func TestManager_ConcurrentAddRemove(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := m.AddPlayer(progress.NewPlayer(id, fmt.Sprintf("p%d", id)), 0, "u", "player")
			assert.NoError(t, err)
			m.Notify(id, "hi")
			_, err = m.RemovePlayer(id)
			assert.NoError(t, err)
		}(int64(i))
	}
	wg.Wait()
	assert.Zero(t, m.PlayerCount())
}

func TestPropertyManager_CountMatchesAdds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ids := rapid.SliceOfDistinct(rapid.Int64Range(1, 1000), func(v int64) int64 { return v }).Draw(rt, "ids")
		m := NewManager()
		for _, id := range ids {
			_, err := m.AddPlayer(progress.NewPlayer(id, "p"), 0, "u", "player")
			require.NoError(rt, err)
		}
		assert.Equal(rt, len(ids), m.PlayerCount())
	})
}
