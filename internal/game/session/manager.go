package session

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cory-johannsen/advancement/internal/game/gate"
	"github.com/cory-johannsen/advancement/internal/game/progress"
)

// PlayerSession tracks a connected player.
type PlayerSession struct {
	// AccountID is the owning account.
	AccountID int64
	// Username is the account username (for logging).
	Username string
	// Role is the account privilege level (player, editor, admin).
	Role string
	// Player is the live progress record.
	Player *progress.Player
	// Pools holds current health, move, mana and blood.
	Pools map[gate.Pool]int
	// BloodInert blocks spending blood.
	BloodInert bool
	// Controlled is set while another character commands this one.
	Controlled bool
	// LagUntil is when the player may act again.
	LagUntil time.Time
	// Entity is the bridge for pushing messages to the player.
	Entity *BridgeEntity
}

// ActorID implements gate.Actor.
func (s *PlayerSession) ActorID() string { return strconv.FormatInt(s.Player.ID, 10) }

// IsNPC implements gate.Actor.
func (s *PlayerSession) IsNPC() bool { return s.Player.IsNPC }

// Charmed implements gate.Actor.
func (s *PlayerSession) Charmed() bool { return s.Controlled }

// CanSpendBlood implements gate.Actor.
func (s *PlayerSession) CanSpendBlood() bool { return !s.BloodInert }

// OwnsAbility implements gate.Actor against the active loadout.
func (s *PlayerSession) OwnsAbility(abilityID string) bool { return s.Player.OwnsActive(abilityID) }

// PoolValue implements gate.Actor.
func (s *PlayerSession) PoolValue(p gate.Pool) int { return s.Pools[p] }

// SetPoolValue implements gate.Actor.
func (s *PlayerSession) SetPoolValue(p gate.Pool, v int) { s.Pools[p] = v }

// Lag implements gate.Actor.
func (s *PlayerSession) Lag(d time.Duration) {
	if until := time.Now().Add(d); until.After(s.LagUntil) {
		s.LagUntil = until
	}
}

// DefaultPools are the pools a fresh session starts with.
var DefaultPools = map[gate.Pool]int{gate.Health: 100, gate.Move: 100, gate.Mana: 100, gate.Blood: 50}

// Manager tracks all active player sessions.
// All methods are safe for concurrent use.
type Manager struct {
	mu      sync.RWMutex
	players map[int64]*PlayerSession
}

// NewManager creates an empty session Manager.
func NewManager() *Manager {
	return &Manager{players: make(map[int64]*PlayerSession)}
}

// AddPlayer registers a session for p.
//
// Precondition: p must be non-nil.
// Postcondition: Returns the created session, or an error if p is already online.
func (m *Manager) AddPlayer(p *progress.Player, accountID int64, username, role string) (*PlayerSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.players[p.ID]; exists {
		return nil, fmt.Errorf("player %d already connected", p.ID)
	}
	pools := make(map[gate.Pool]int, len(DefaultPools))
	for k, v := range DefaultPools {
		pools[k] = v
	}
	sess := &PlayerSession{
		AccountID: accountID,
		Username:  username,
		Role:      role,
		Player:    p,
		Pools:     pools,
		Entity:    NewBridgeEntity(p.ID, 64),
	}
	m.players[p.ID] = sess
	return sess, nil
}

// RemovePlayer closes and forgets the session for id.
//
// Postcondition: Returns the removed session, or an error if not found.
func (m *Manager) RemovePlayer(id int64) (*PlayerSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.players[id]
	if !exists {
		return nil, fmt.Errorf("player %d not found", id)
	}
	_ = sess.Entity.Close()
	delete(m.players, id)
	return sess, nil
}

// GetPlayer returns the session for id.
func (m *Manager) GetPlayer(id int64) (*PlayerSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.players[id]
	return sess, ok
}

// GetPlayerByCharName returns the session whose character name matches
// name, ignoring case.
func (m *Manager) GetPlayerByCharName(name string) (*PlayerSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sess := range m.players {
		if strings.EqualFold(sess.Player.Name, name) {
			return sess, true
		}
	}
	return nil, false
}

// All returns every session ordered by player ID.
func (m *Manager) All() []*PlayerSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*PlayerSession, 0, len(m.players))
	for _, sess := range m.players {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Player.ID < out[j].Player.ID })
	return out
}

// Players returns the progress records of every online player.
func (m *Manager) Players() []*progress.Player {
	all := m.All()
	out := make([]*progress.Player, len(all))
	for i, sess := range all {
		out[i] = sess.Player
	}
	return out
}

// PlayerCount returns the number of connected players.
func (m *Manager) PlayerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}

// Notify pushes msg to playerID if online. Offline players and full buffers
// drop the message.
func (m *Manager) Notify(playerID int64, msg string) {
	if sess, ok := m.GetPlayer(playerID); ok {
		_ = sess.Entity.Push(msg)
	}
}
