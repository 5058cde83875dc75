package repository

import (
	"context"
	"database/sql"
	"errors"

	"mangahub/pkg/database"
	"mangahub/pkg/models"
)

// UserRepository handles user persistence
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

type userRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, username, email, password_hash, role, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var role string
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &role, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	user.Role = models.UserRole(role)
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, string(user.Role), user.CreatedAt)
	if err != nil {
		mapped := mapDBError(err, "create_user")
		if isConflict(mapped) {
			// Which constraint fired decides the user-facing message.
			if taken, checkErr := r.UsernameExists(ctx, user.Username); checkErr == nil && taken {
				return models.NewConflictError("username already exists", models.ErrUsernameExists)
			}
			return models.NewConflictError("email already exists", models.ErrEmailExists)
		}
		return mapped
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError("user not found", models.ErrUserNotFound)
	}
	if err != nil {
		return nil, mapDBError(err, "get_user_by_id")
	}
	return user, nil
}

func (r *userRepository) GetByLogin(ctx context.Context, usernameOrEmail string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, usernameOrEmail))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFoundError("user not found", models.ErrUserNotFound)
	}
	if err != nil {
		return nil, mapDBError(err, "get_user_by_login")
	}
	return user, nil
}

func (r *userRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, mapDBError(err, "check_username_exists")
	}
	return exists, nil
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, mapDBError(err, "check_email_exists")
	}
	return exists, nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET username = $2, email = $3, password_hash = $4, role = $5
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, string(user.Role))
	if err != nil {
		mapped := mapDBError(err, "update_user")
		if isConflict(mapped) {
			return models.NewConflictError("username or email already exists", err)
		}
		return mapped
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError("user not found", models.ErrUserNotFound)
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapDBError(err, "delete_user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.NewNotFoundError("user not found", models.ErrUserNotFound)
	}
	return nil
}
