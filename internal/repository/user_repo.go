package repository

import (
	"database/sql"
	"fmt"

	"github.com/garyjia/claims-intake/internal/models"
	"go.uber.org/zap"
)

// UserRepository handles user database operations.
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new user.
func (r *UserRepository) Create(tx *sql.Tx, user *models.User) error {
	query := `
		INSERT INTO users (css_id, full_name, email, station_id)
		VALUES (?, ?, ?, ?)
	`

	var result sql.Result
	var err error

	if tx != nil {
		result, err = tx.Exec(query, user.CSSID, user.FullName, user.Email, user.StationID)
	} else {
		result, err = r.db.Exec(query, user.CSSID, user.FullName, user.Email, user.StationID)
	}

	if err != nil {
		r.logger.Error("Failed to create user", zap.String("css_id", user.CSSID), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	user.ID = id
	return nil
}

// GetUserByID retrieves a user by ID. Returns (nil, nil) when no row
// exists.
func (r *UserRepository) GetUserByID(id int64) (*models.User, error) {
	query := `
		SELECT id, css_id, full_name, email, station_id, created_at
		FROM users
		WHERE id = ?
	`
	return r.scanUser(r.db.QueryRow(query, id))
}

// GetByCSSID retrieves a user by station login. Returns (nil, nil)
// when no row exists.
func (r *UserRepository) GetByCSSID(cssID string) (*models.User, error) {
	query := `
		SELECT id, css_id, full_name, email, station_id, created_at
		FROM users
		WHERE css_id = ?
	`
	return r.scanUser(r.db.QueryRow(query, cssID))
}

func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	var user models.User

	err := row.Scan(
		&user.ID,
		&user.CSSID,
		&user.FullName,
		&user.Email,
		&user.StationID,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}
