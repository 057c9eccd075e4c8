package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jparedesa-eng/fleet-admin/internal/models"
)

const userColumns = `id, username, email, password_hash, role, full_name, is_active, last_login, created_at, updated_at`

func (s *SQLiteStore) InsertUser(ctx context.Context, user models.User) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilStore
	}
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.IsActive = true
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(`+userColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?)`,
		user.ID, user.Username, user.Email, user.PasswordHash, string(user.Role), user.FullName,
		1, nil, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *SQLiteStore) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, "id", id)
}

func (s *SQLiteStore) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.findUser(ctx, "username", username)
}

func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, "email", email)
}

// findUser looks a user up by one of the fixed, unique columns above.
func (s *SQLiteStore) findUser(ctx context.Context, column, value string) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, ErrNilStore
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	if err != nil {
		return nil, err
	}
	found, err := scanAll(rows, s.log, scanUser)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

func (s *SQLiteStore) UpdateLastLogin(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return ErrNilStore
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ?, updated_at = ? WHERE id = ?`, now, now, id)
	return err
}

func scanUser(rows *sql.Rows) (models.User, error) {
	var u models.User
	var role, createdAt, updatedAt string
	var active int
	var lastLogin sql.NullString
	if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.FullName,
		&active, &lastLogin, &createdAt, &updatedAt); err != nil {
		return models.User{}, err
	}
	u.Role = models.Role(role)
	if !models.IsValidRole(u.Role) {
		return models.User{}, fmt.Errorf("user %s has role %q", u.Username, role)
	}
	u.IsActive = active != 0
	if lastLogin.Valid {
		t := parseTime(lastLogin.String)
		u.LastLogin = &t
	}
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return u, nil
}
