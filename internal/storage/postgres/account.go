package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// Account roles. Admins may run the admin in-game commands and sell abilities.
const (
	RolePlayer = "player"
	RoleEditor = "editor"
	RoleAdmin  = "admin"
)

const (
	maxUsernameRunes = 64
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
	// ErrInvalidAccount is returned by Create for an empty or oversized
	// username or password.
	ErrInvalidAccount = errors.New("username must be 1-64 characters and password 1-72 bytes")
)

// ValidRole reports whether role is player, editor or admin.
func ValidRole(role string) bool {
	return role == RolePlayer || role == RoleEditor || role == RoleAdmin
}

// Account is one login. Players belong to exactly one account.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

const accountColumns = `id, username, password_hash, role, created_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.Role, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	if err != nil {
		return Account{}, fmt.Errorf("scanning account: %w", err)
	}
	return a, nil
}

// AccountRepository reads and writes the accounts table.
type AccountRepository struct {
	db *pgxpool.Pool
}

// NewAccountRepository creates an AccountRepository on db.
func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create stores a player-role account with a bcrypt hash of password.
//
// Postcondition: returns ErrInvalidAccount without touching the database
// when the credentials are out of range, and ErrAccountExists for a taken username.
func (r *AccountRepository) Create(ctx context.Context, username, password string) (Account, error) {
	if err := checkCredentials(username, password); err != nil {
		return Account{}, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Account{}, fmt.Errorf("hashing password: %w", err)
	}
	a, err := scanAccount(r.db.QueryRow(ctx,
		`INSERT INTO accounts (username, password_hash, role) VALUES ($1, $2, $3)
		 RETURNING `+accountColumns,
		username, hash, RolePlayer,
	))
	if isDuplicateKeyError(err) {
		return Account{}, fmt.Errorf("%w: %s", ErrAccountExists, username)
	}
	return a, err
}

func checkCredentials(username, password string) error {
	n := utf8.RuneCountInString(username)
	if n == 0 || n > maxUsernameRunes || password == "" || len(password) > maxPasswordBytes {
		return ErrInvalidAccount
	}
	return nil
}

// Authenticate returns the account when password matches its hash.
//
// Postcondition: returns ErrAccountNotFound for an unknown username and
// ErrInvalidCredentials for a wrong password.
func (r *AccountRepository) Authenticate(ctx context.Context, username, password string) (Account, error) {
	a, err := r.GetByUsername(ctx, username)
	if err != nil {
		return Account{}, err
	}
	if !CheckPassword(password, a.PasswordHash) {
		return Account{}, ErrInvalidCredentials
	}
	return a, nil
}

// GetByUsername returns the account named username, or ErrAccountNotFound.
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username))
}

// GetByID returns account id, or ErrAccountNotFound.
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (Account, error) {
	return scanAccount(r.db.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

// SetRoleByUsername changes username's role in one statement.
//
// Postcondition: returns ErrInvalidRole before touching the database, or
// ErrAccountNotFound when no row matched.
func (r *AccountRepository) SetRoleByUsername(ctx context.Context, username, role string) error {
	if !ValidRole(role) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET role = $1 WHERE username = $2`, role, username)
	if err != nil {
		return fmt.Errorf("updating role for %s: %w", username, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, username)
	}
	return nil
}

// HashPassword returns a bcrypt hash of password at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPassword reports whether password matches hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
