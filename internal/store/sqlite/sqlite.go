package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/marketchat/internal/store"
)

//go:embed schema.sql
var schema string

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests that need a custom schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== AccountStore implementation ====

const accountColumns = `id, name, password_hash, is_guest, COALESCE(session_id, ''), created_at`

// CreateAccount creates a new account with hashed password.
func (s *SQLiteStore) CreateAccount(ctx context.Context, name, passwordHash string) (*store.Account, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (name, password_hash, is_guest) VALUES (?, ?, 0)`,
		name, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return s.GetAccountByID(ctx, id)
}

// CreateGuestAccount creates a guest account with a generated name.
func (s *SQLiteStore) CreateGuestAccount(ctx context.Context, sessionID string) (*store.Account, error) {
	if len(sessionID) < 8 {
		return nil, fmt.Errorf("session id too short")
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (name, password_hash, is_guest, session_id) VALUES (?, '', 1, ?)`,
		"guest_"+sessionID[:8], sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert guest account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return s.GetAccountByID(ctx, id)
}

// GetAccountByID retrieves an account by ID.
func (s *SQLiteStore) GetAccountByID(ctx context.Context, id int64) (*store.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// GetAccountByName retrieves a registered account by name.
func (s *SQLiteStore) GetAccountByName(ctx context.Context, name string) (*store.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE name = ? AND is_guest = 0`, name)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (*store.Account, error) {
	var acc store.Account
	err := row.Scan(
		&acc.ID,
		&acc.Name,
		&acc.PasswordHash,
		&acc.IsGuest,
		&acc.SessionID,
		&acc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query account: %w", err)
	}
	return &acc, nil
}

// ==== MarketStore implementation ====

// CreateMarket inserts a market with a generated UUID.
func (s *SQLiteStore) CreateMarket(ctx context.Context, question, description string, creatorID *int64) (*store.Market, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO markets (id, question, description, creator_id) VALUES (?, ?, ?, ?)`,
		id, question, description, creatorID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert market: %w", err)
	}
	return s.GetMarket(ctx, id)
}

// GetMarket retrieves a market by ID.
func (s *SQLiteStore) GetMarket(ctx context.Context, id string) (*store.Market, error) {
	var (
		m         store.Market
		creatorID sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, question, description, creator_id, created_at FROM markets WHERE id = ?`, id,
	).Scan(&m.ID, &m.Question, &m.Description, &creatorID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("market %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query market: %w", err)
	}
	if creatorID.Valid {
		m.CreatorID = &creatorID.Int64
	}
	return &m, nil
}

// ListMarkets lists markets, newest first.
func (s *SQLiteStore) ListMarkets(ctx context.Context, limit int) ([]*store.Market, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, question, description, creator_id, created_at
		FROM markets
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query markets: %w", err)
	}
	defer rows.Close()

	var markets []*store.Market
	for rows.Next() {
		var (
			m         store.Market
			creatorID sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.Question, &m.Description, &creatorID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan market: %w", err)
		}
		if creatorID.Valid {
			id := creatorID.Int64
			m.CreatorID = &id
		}
		markets = append(markets, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate markets: %w", err)
	}
	return markets, nil
}
