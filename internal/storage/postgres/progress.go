package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/advancement/internal/game/progress"
)

// ErrPlayerNotFound is returned when a player lookup yields no results.
var ErrPlayerNotFound = errors.New("player not found")

// ErrPlayerNameTaken is returned when creating a player with a name already in use.
var ErrPlayerNameTaken = errors.New("player name already taken")

const playerColumns = `id, account_id, name, faction_id, current_set, daily_bonus_exp,
	immortal, approved, can_gain_new_skills, can_get_bonus_skills, bonus_exp_trait`

// ProgressRepository persists player progress records.
type ProgressRepository struct {
	db *pgxpool.Pool
}

// NewProgressRepository creates a ProgressRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewProgressRepository(db *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Create inserts an empty progress record for a new player.
//
// Precondition: accountID must reference an existing account; name must be non-empty.
// Postcondition: Returns the record with ID set, or ErrPlayerNameTaken on duplicate.
func (r *ProgressRepository) Create(ctx context.Context, accountID int64, name string) (*progress.Player, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO players (account_id, name) VALUES ($1, $2) RETURNING id`,
		accountID, name,
	).Scan(&id)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrPlayerNameTaken
		}
		return nil, fmt.Errorf("inserting player: %w", err)
	}
	p := progress.NewPlayer(id, name)
	p.AccountID = accountID
	return p, nil
}

// Load reads the full record for id, including skills and abilities.
//
// Postcondition: Returns the record or ErrPlayerNotFound.
func (r *ProgressRepository) Load(ctx context.Context, id int64) (*progress.Player, error) {
	return r.load(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id)
}

// LoadByName reads the full record for the player with the given name.
//
// Postcondition: Returns the record or ErrPlayerNotFound.
func (r *ProgressRepository) LoadByName(ctx context.Context, name string) (*progress.Player, error) {
	return r.load(ctx, `SELECT `+playerColumns+` FROM players WHERE lower(name) = lower($1)`, name)
}

// ListByAccount returns the ids and names of an account's players, ordered by id.
func (r *ProgressRepository) ListByAccount(ctx context.Context, accountID int64) ([]*progress.Player, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name FROM players WHERE account_id = $1 ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	defer rows.Close()

	out := make([]*progress.Player, 0)
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning player row: %w", err)
		}
		p := progress.NewPlayer(id, name)
		p.AccountID = accountID
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProgressRepository) load(ctx context.Context, query string, arg any) (*progress.Player, error) {
	var (
		p       progress.Player
		faction uuid.NullUUID
		set     int16
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&p.ID, &p.AccountID, &p.Name, &faction, &set, &p.DailyBonusExp,
		&p.Immortal, &p.Approved, &p.CanGainNewSkills, &p.CanGetBonusSkills, &p.BonusExpTrait,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("querying player: %w", err)
	}

	out := progress.NewPlayer(p.ID, p.Name)
	out.AccountID = p.AccountID
	if faction.Valid {
		out.FactionID = faction.UUID
	}
	out.CurrentSet = int(set)
	out.DailyBonusExp = p.DailyBonusExp
	out.Immortal = p.Immortal
	out.Approved = p.Approved
	out.CanGainNewSkills = p.CanGainNewSkills
	out.CanGetBonusSkills = p.CanGetBonusSkills
	out.BonusExpTrait = p.BonusExpTrait

	if err := r.loadSkills(ctx, out); err != nil {
		return nil, err
	}
	if err := r.loadAbilities(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ProgressRepository) loadSkills(ctx context.Context, p *progress.Player) error {
	rows, err := r.db.Query(ctx, `
		SELECT skill_id, level, exp, resets, noskill, dead_end_0, dead_end_1
		FROM player_skills WHERE player_id = $1`, p.ID)
	if err != nil {
		return fmt.Errorf("querying player skills: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id string
			sp progress.SkillProgress
		)
		if err := rows.Scan(&id, &sp.Level, &sp.Exp, &sp.Resets, &sp.NoSkill,
			&sp.DeadEndGrant[0], &sp.DeadEndGrant[1]); err != nil {
			return fmt.Errorf("scanning player skill row: %w", err)
		}
		*p.Skill(id) = sp
	}
	return rows.Err()
}

func (r *ProgressRepository) loadAbilities(ctx context.Context, p *progress.Player) error {
	rows, err := r.db.Query(ctx, `
		SELECT ability_id, purchased_0, purchased_1, levels_gained
		FROM player_abilities WHERE player_id = $1`, p.ID)
	if err != nil {
		return fmt.Errorf("querying player abilities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id string
			o  progress.Ownership
		)
		if err := rows.Scan(&id, &o.Purchased[0], &o.Purchased[1], &o.LevelsGained); err != nil {
			return fmt.Errorf("scanning player ability row: %w", err)
		}
		*p.Ability(id) = o
	}
	return rows.Err()
}

// Save rewrites the full record for p in one transaction.
//
// Precondition: p must have been created by Create or loaded by Load.
// Postcondition: The stored record matches p, or ErrPlayerNotFound / a
// wrapped database error is returned and nothing changed.
func (r *ProgressRepository) Save(ctx context.Context, p *progress.Player) error {
	faction := uuid.NullUUID{UUID: p.FactionID, Valid: p.Affiliated()}
	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE players SET
				faction_id = $2, current_set = $3, daily_bonus_exp = $4, immortal = $5,
				approved = $6, can_gain_new_skills = $7, can_get_bonus_skills = $8,
				bonus_exp_trait = $9, updated_at = NOW()
			WHERE id = $1`,
			p.ID, faction, int16(p.CurrentSet), p.DailyBonusExp, p.Immortal,
			p.Approved, p.CanGainNewSkills, p.CanGetBonusSkills, p.BonusExpTrait,
		)
		if err != nil {
			return fmt.Errorf("updating player: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrPlayerNotFound
		}

		if _, err := tx.Exec(ctx, `DELETE FROM player_skills WHERE player_id = $1`, p.ID); err != nil {
			return fmt.Errorf("clearing player skills: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM player_abilities WHERE player_id = $1`, p.ID); err != nil {
			return fmt.Errorf("clearing player abilities: %w", err)
		}

		skillIDs := p.SkillIDs()
		skills := make([][]any, 0, len(skillIDs))
		for _, id := range skillIDs {
			sp, _ := p.LookupSkill(id)
			skills = append(skills, []any{p.ID, id, sp.Level, sp.Exp, sp.Resets, sp.NoSkill,
				sp.DeadEndGrant[0], sp.DeadEndGrant[1]})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"player_skills"},
			[]string{"player_id", "skill_id", "level", "exp", "resets", "noskill", "dead_end_0", "dead_end_1"},
			pgx.CopyFromRows(skills)); err != nil {
			return fmt.Errorf("writing player skills: %w", err)
		}

		abilityIDs := p.AbilityIDs()
		abilities := make([][]any, 0, len(abilityIDs))
		for _, id := range abilityIDs {
			o, _ := p.LookupAbility(id)
			if !o.Any() && o.LevelsGained == 0 {
				continue
			}
			abilities = append(abilities, []any{p.ID, id, o.Purchased[0], o.Purchased[1], o.LevelsGained})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"player_abilities"},
			[]string{"player_id", "ability_id", "purchased_0", "purchased_1", "levels_gained"},
			pgx.CopyFromRows(abilities)); err != nil {
			return fmt.Errorf("writing player abilities: %w", err)
		}
		return nil
	})
}

// SetApproved flips the approval flag without loading the record.
//
// Postcondition: Returns ErrPlayerNotFound if no player has that name.
func (r *ProgressRepository) SetApproved(ctx context.Context, name string, approved bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE players SET approved = $2, updated_at = NOW() WHERE lower(name) = lower($1)`,
		name, approved,
	)
	if err != nil {
		return fmt.Errorf("updating approval: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPlayerNotFound
	}
	return nil
}
