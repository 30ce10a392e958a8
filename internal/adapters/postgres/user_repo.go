// Package postgres implements the auth stub's account storage on PostgreSQL
// through the pgx stdlib bridge.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	domainauth "github.com/target/tokenlab/internal/domain/auth"
	apperrors "github.com/target/tokenlab/internal/errors"
	"github.com/target/tokenlab/internal/ports"
)

const userColumns = `id, name, email, password_hash, role, created_at`

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r userRow) toDomain() domainauth.User {
	return domainauth.User{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         domainauth.Role(r.Role),
		CreatedAt:    r.CreatedAt,
	}
}

// UserRepo stores accounts in the users table.
type UserRepo struct {
	DB *sql.DB
}

// NewUserRepo creates a new user repository.
func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

var _ ports.UserRepository = (*UserRepo)(nil)

// Create inserts u. A duplicate email maps to ports.ErrEmailTaken.
func (r *UserRepo) Create(ctx context.Context, u domainauth.User) error {
	if strings.TrimSpace(u.ID) == "" {
		return errors.New("user id is required")
	}

	err := withPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx,
			`INSERT INTO users (id, name, email, password_hash, role, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt)
		return err
	})
	if err == nil {
		return nil
	}

	mapped := apperrors.MapDBError(err)
	if apperrors.IsConflict(mapped) {
		return fmt.Errorf("create user %s: %w", u.Email, ports.ErrEmailTaken)
	}
	return fmt.Errorf("create user: %w", mapped)
}

// FindByEmail returns the account registered under email or ports.ErrUserNotFound.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (domainauth.User, error) {
	var row userRow
	err := withPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
		if err != nil {
			return err
		}
		defer rows.Close()

		row, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[userRow])
		return err
	})
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsNotFound(mapped) {
			return domainauth.User{}, ports.ErrUserNotFound
		}
		return domainauth.User{}, fmt.Errorf("find user by email: %w", mapped)
	}
	return row.toDomain(), nil
}

// withPgxConn acquires a *pgx.Conn via the stdlib bridge and executes fn with it.
func withPgxConn(ctx context.Context, db *sql.DB, fn func(*pgx.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return conn.Raw(func(dc any) error {
		std, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		return fn(std.Conn())
	})
}
