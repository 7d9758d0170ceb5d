package gameserver

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/advancement/internal/game/progress"
	"github.com/cory-johannsen/advancement/internal/observability"
)

const saveTimeout = 5 * time.Second

// saveLine orders writes of each player's record. Snapshots are stamped with
// a per-player sequence while the service lock is held, and a snapshot older
// than the last one written is dropped, so a slow flush never overwrites a
// later save or logout.
//
// saveLine implements progression.Saver. Gameplay never waits on a failed
// write: errors are logged and the next save retries.
type saveLine struct {
	store  ProgressStore
	logger *zap.Logger

	mu      sync.Mutex
	players map[int64]*saveState
	queued  int
	drained *sync.Cond
}

type saveState struct {
	write   sync.Mutex
	stamped uint64 // guarded by saveLine.mu
	written uint64 // guarded by write
}

type snapshot struct {
	player *progress.Player
	seq    uint64
	state  *saveState
}

func newSaveLine(store ProgressStore, logger *zap.Logger) *saveLine {
	l := &saveLine{store: store, logger: logger, players: make(map[int64]*saveState)}
	l.drained = sync.NewCond(&l.mu)
	return l
}

// stamp clones p and numbers the copy after every earlier stamp of p.
//
// Precondition: the caller holds the service lock.
func (l *saveLine) stamp(p *progress.Player) snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, ok := l.players[p.ID]
	if !ok {
		st = &saveState{}
		l.players[p.ID] = st
	}
	st.stamped++
	return snapshot{player: p.Clone(), seq: st.stamped, state: st}
}

// write stores snap unless a later snapshot of the same player was already
// written. It waits for any write of that player still in flight.
func (l *saveLine) write(ctx context.Context, snap snapshot) error {
	snap.state.write.Lock()
	defer snap.state.write.Unlock()
	return l.writeLocked(ctx, snap)
}

func (l *saveLine) writeLocked(ctx context.Context, snap snapshot) error {
	if snap.seq <= snap.state.written {
		l.logger.Debug("dropping stale save",
			observability.Player(snap.player.ID),
			zap.Uint64("seq", snap.seq),
			zap.Uint64("written", snap.state.written),
		)
		return nil
	}
	if err := l.store.Save(ctx, snap.player); err != nil {
		return err
	}
	snap.state.written = snap.seq
	return nil
}

// Save writes p inline when no other write of p is in flight; otherwise the
// snapshot queues behind that write so the caller keeps the service lock
// only briefly.
func (l *saveLine) Save(p *progress.Player) {
	snap := l.stamp(p)
	if snap.state.write.TryLock() {
		defer snap.state.write.Unlock()
		l.saveWithTimeout(snap, l.writeLocked)
		return
	}
	l.mu.Lock()
	l.queued++
	l.mu.Unlock()
	go func() {
		defer l.dequeue()
		l.saveWithTimeout(snap, l.write)
	}()
}

func (l *saveLine) dequeue() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queued--
	if l.queued == 0 {
		l.drained.Broadcast()
	}
}

func (l *saveLine) saveWithTimeout(snap snapshot, w func(context.Context, snapshot) error) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := w(ctx, snap); err != nil {
		l.logger.Error("saving player", observability.Player(snap.player.ID), zap.Error(err))
	}
}

// Wait blocks until every queued save has finished.
func (l *saveLine) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.queued > 0 {
		l.drained.Wait()
	}
}
