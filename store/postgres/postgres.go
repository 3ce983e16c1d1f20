// Package postgres provides a PostgreSQL-backed UserStore. Per-user write
// serialization is done with row-level locks (SELECT ... FOR UPDATE), and
// the account-deletion cascade runs in a single transaction.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	authcore "github.com/synccord/authcore"
	"github.com/synccord/authcore/permission"
)

const uniqueViolation = "23505"

// Store implements authcore.UserStore on top of PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to the database and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

const credentialColumns = `id, username, password_hash, salt, banned, owner, permissions, mfa_enabled, mfa_secret, created_at`

func (s *Store) GetByUsername(ctx context.Context, username string) (*authcore.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM users WHERE username = $1`
	return s.scanCredential(s.db.QueryRowContext(ctx, query, username))
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*authcore.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM users u
		JOIN emails e ON e.user_id = u.id WHERE lower(e.address) = lower($1)`
	return s.scanCredential(s.db.QueryRowContext(ctx, query, email))
}

func (s *Store) GetByID(ctx context.Context, id string) (*authcore.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM users WHERE id = $1`
	return s.scanCredential(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) GetEmailByUser(ctx context.Context, userID string) (*authcore.EmailRecord, error) {
	query := `SELECT user_id, address, verified FROM emails WHERE user_id = $1`
	rec := &authcore.EmailRecord{}
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&rec.UserID, &rec.Address, &rec.Verified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authcore.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Create inserts the credential and its email record in one transaction.
// Unique-constraint violations map onto ErrUsernameTaken / ErrEmailTaken.
func (s *Store) Create(ctx context.Context, cred *authcore.Credential, email *authcore.EmailRecord) error {
	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	email.UserID = cred.ID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, salt, banned, owner, permissions, mfa_enabled, mfa_secret, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		cred.ID, cred.Username, cred.PasswordHash, cred.Salt, cred.Banned, cred.Owner,
		int64(cred.Permissions), cred.MFAEnabled, cred.MFASecret, cred.CreatedAt)
	if err != nil {
		if constraintViolated(err, "users_username_key") {
			return authcore.ErrUsernameTaken
		}
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO emails (user_id, address, verified) VALUES ($1, $2, $3)`,
		email.UserID, email.Address, email.Verified)
	if err != nil {
		if constraintViolated(err, "emails_address_key") {
			return authcore.ErrEmailTaken
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) Save(ctx context.Context, cred *authcore.Credential) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET username = $2, password_hash = $3, salt = $4, banned = $5,
			owner = $6, permissions = $7, mfa_enabled = $8, mfa_secret = $9
		WHERE id = $1`,
		cred.ID, cred.Username, cred.PasswordHash, cred.Salt, cred.Banned,
		cred.Owner, int64(cred.Permissions), cred.MFAEnabled, cred.MFASecret)
	if err != nil {
		if constraintViolated(err, "users_username_key") {
			return authcore.ErrUsernameTaken
		}
		return err
	}
	return requireRow(res)
}

func (s *Store) SaveEmail(ctx context.Context, rec *authcore.EmailRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE emails SET address = $2, verified = $3 WHERE user_id = $1`,
		rec.UserID, rec.Address, rec.Verified)
	if err != nil {
		if constraintViolated(err, "emails_address_key") {
			return authcore.ErrEmailTaken
		}
		return err
	}
	return requireRow(res)
}

// Delete cascades the email record and recovery codes in one transaction
// with the user row, so partial deletion is never observable.
func (s *Store) Delete(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recovery_codes WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM emails WHERE user_id = $1`, userID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) RecoveryCodes(ctx context.Context, userID string) ([]authcore.RecoveryCode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, code, used FROM recovery_codes WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []authcore.RecoveryCode
	for rows.Next() {
		var rc authcore.RecoveryCode
		if err := rows.Scan(&rc.ID, &rc.Code, &rc.Used); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// ReplaceRecoveryCodes deletes the old batch and inserts the new one in a
// single transaction.
func (s *Store) ReplaceRecoveryCodes(ctx context.Context, userID string, codes []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recovery_codes WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, code := range codes {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO recovery_codes (id, user_id, code) VALUES ($1, $2, $3)`,
			uuid.NewString(), userID, code)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ConsumeRecoveryCode locks the matching row with FOR UPDATE before
// flipping the used flag, so a code can be spent at most once even under
// concurrent submission.
func (s *Store) ConsumeRecoveryCode(ctx context.Context, userID, code string) (authcore.RecoveryCodeResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return authcore.RecoveryCodeUnknown, err
	}
	defer tx.Rollback()

	var id string
	var used bool
	err = tx.QueryRowContext(ctx,
		`SELECT id, used FROM recovery_codes WHERE user_id = $1 AND code = $2 FOR UPDATE`,
		userID, code).Scan(&id, &used)
	if errors.Is(err, sql.ErrNoRows) {
		return authcore.RecoveryCodeUnknown, nil
	}
	if err != nil {
		return authcore.RecoveryCodeUnknown, err
	}
	if used {
		return authcore.RecoveryCodeAlreadyUsed, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE recovery_codes SET used = TRUE WHERE id = $1`, id); err != nil {
		return authcore.RecoveryCodeUnknown, err
	}
	if err := tx.Commit(); err != nil {
		return authcore.RecoveryCodeUnknown, err
	}
	return authcore.RecoveryCodeConsumed, nil
}

func (s *Store) scanCredential(row *sql.Row) (*authcore.Credential, error) {
	cred := &authcore.Credential{}
	var perms int64
	err := row.Scan(&cred.ID, &cred.Username, &cred.PasswordHash, &cred.Salt, &cred.Banned,
		&cred.Owner, &perms, &cred.MFAEnabled, &cred.MFASecret, &cred.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authcore.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	cred.Permissions = permission.Set(perms)
	return cred, nil
}

func constraintViolated(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}
