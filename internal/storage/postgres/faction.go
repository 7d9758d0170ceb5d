package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/advancement/internal/game/faction"
)

// ErrFactionExists is returned when creating a faction with a name already in use.
var ErrFactionExists = errors.New("faction already exists")

// FactionRepository persists faction identities. Technology counters are
// derived from online members at login and are never stored.
type FactionRepository struct {
	db *pgxpool.Pool
}

// NewFactionRepository creates a FactionRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewFactionRepository(db *pgxpool.Pool) *FactionRepository {
	return &FactionRepository{db: db}
}

// Create stores a new faction with a fresh id.
//
// Postcondition: Returns the faction, or ErrFactionExists on a duplicate name.
func (r *FactionRepository) Create(ctx context.Context, name string) (*faction.Faction, error) {
	f := faction.New(name)
	_, err := r.db.Exec(ctx, `INSERT INTO factions (id, name) VALUES ($1, $2)`, f.ID, f.Name)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrFactionExists
		}
		return nil, fmt.Errorf("inserting faction: %w", err)
	}
	return f, nil
}

// All returns every stored faction ordered by name.
func (r *FactionRepository) All(ctx context.Context) ([]*faction.Faction, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM factions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing factions: %w", err)
	}
	defer rows.Close()

	out := make([]*faction.Faction, 0)
	for rows.Next() {
		var (
			id   uuid.UUID
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning faction row: %w", err)
		}
		out = append(out, faction.Restore(id, name))
	}
	return out, rows.Err()
}

// LoadInto adds every stored faction to reg and returns how many it added.
func (r *FactionRepository) LoadInto(ctx context.Context, reg *faction.Registry) (int, error) {
	all, err := r.All(ctx)
	if err != nil {
		return 0, err
	}
	for _, f := range all {
		reg.Add(f)
	}
	return len(all), nil
}
