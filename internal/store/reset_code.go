package store

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/larderhq/larder/internal/model"
)

type ResetCodeStore struct {
	db *sql.DB
}

func NewResetCodeStore(db *sql.DB) *ResetCodeStore {
	return &ResetCodeStore{db: db}
}

func scanResetCode(scanner interface{ Scan(...any) error }) (*model.ResetCode, error) {
	var rc model.ResetCode
	var usedAt sql.NullTime

	err := scanner.Scan(&rc.ID, &rc.Email, &rc.Code, &rc.ExpiresAt, &usedAt, &rc.Attempts, &rc.CreatedAt)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		rc.UsedAt = &usedAt.Time
	}
	return &rc, nil
}

const resetCodeCols = `id, email, code, expires_at, used_at, attempts, created_at`

// generateCode returns a 6-digit numeric code (100000–999999).
func generateCode() (string, error) {
	// Range: 100000 to 999999 (900000 values)
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Create generates a new 6-digit reset code with a 15-minute expiry.
// Any previous pending codes for the same email are invalidated first.
func (s *ResetCodeStore) Create(email string) (*model.ResetCode, error) {
	_, err := s.db.Exec(
		`UPDATE reset_codes SET used_at = datetime('now') WHERE email = ? AND used_at IS NULL AND expires_at > datetime('now')`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous codes: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(15 * time.Minute)

	result, err := s.db.Exec(
		`INSERT INTO reset_codes (email, code, expires_at) VALUES (?, ?, ?)`,
		email, code, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reset code: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+resetCodeCols+` FROM reset_codes WHERE id = ?`, id)
	return scanResetCode(row)
}

// GetByEmailAndCode returns the reset code matching the email and code, or
// nil if not found, expired, or already used.
func (s *ResetCodeStore) GetByEmailAndCode(email, code string) (*model.ResetCode, error) {
	row := s.db.QueryRow(
		`SELECT `+resetCodeCols+` FROM reset_codes WHERE email = ? AND code = ? AND expires_at > datetime('now') AND used_at IS NULL`,
		email, code,
	)
	rc, err := scanResetCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reset code by email and code: %w", err)
	}
	return rc, nil
}

// GetLatestByEmail returns the most recent valid (unexpired, unused) code for an email.
func (s *ResetCodeStore) GetLatestByEmail(email string) (*model.ResetCode, error) {
	row := s.db.QueryRow(
		`SELECT `+resetCodeCols+` FROM reset_codes WHERE email = ? AND expires_at > datetime('now') AND used_at IS NULL ORDER BY created_at DESC LIMIT 1`,
		email,
	)
	rc, err := scanResetCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest reset code by email: %w", err)
	}
	return rc, nil
}

// IncrementAttempts increments the attempt count and returns the new value.
func (s *ResetCodeStore) IncrementAttempts(id int64) (int, error) {
	_, err := s.db.Exec(
		`UPDATE reset_codes SET attempts = attempts + 1 WHERE id = ?`,
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}

	var attempts int
	err = s.db.QueryRow(`SELECT attempts FROM reset_codes WHERE id = ?`, id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("read attempts: %w", err)
	}
	return attempts, nil
}

func (s *ResetCodeStore) MarkUsed(id int64) error {
	_, err := s.db.Exec(
		`UPDATE reset_codes SET used_at = datetime('now') WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark reset code used: %w", err)
	}
	return nil
}

func (s *ResetCodeStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM reset_codes WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired reset codes: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
