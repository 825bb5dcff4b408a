package database

import (
	"database/sql"

	"mathemelody/pkg/models"
)

// CreateUser inserts a new account and returns its ID. The UNIQUE
// constraints on username and email are the final word on duplicates;
// callers pre-check for friendlier errors but must tolerate a constraint
// failure from a racing registration.
func (db *Database) CreateUser(username, email, passwordHash string) (int, error) {
	result, err := db.conn.Exec(`
		INSERT INTO users (username, email, password_hash)
		VALUES (?, ?, ?)`, username, email, passwordHash)
	if err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		db.logger.WithError(err).Error("Failed to get last insert ID")
		return 0, err
	}
	return int(id), nil
}

// GetUserByID returns a single user by their ID.
func (db *Database) GetUserByID(id int) (*models.User, error) {
	var user models.User
	err := db.getUserByIDStmt.QueryRow(id).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		db.logger.WithError(err).WithField("user_id", id).Error("Failed to get user by ID")
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername returns a single user by their username.
func (db *Database) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	err := db.getUserByUsernameStmt.QueryRow(username).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		db.logger.WithError(err).WithField("username", username).Error("Failed to get user by username")
		return nil, err
	}
	return &user, nil
}

// UsernameTaken reports whether a username is already registered.
func (db *Database) UsernameTaken(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", username).Scan(&count)
	return count > 0, err
}

// EmailTaken reports whether an email address is already registered.
func (db *Database) EmailTaken(email string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM users WHERE email = ?", email).Scan(&count)
	return count > 0, err
}
