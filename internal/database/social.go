package database

import (
	"database/sql"

	"mathemelody/pkg/models"
)

// ToggleLike flips a user's like on a composition and returns the new state
// plus the resulting like count. The insert relies on the primary key with
// ON CONFLICT DO NOTHING, so a concurrent duplicate like is harmless: zero
// rows affected means the like already existed and should be removed.
func (db *Database) ToggleLike(compositionID, userID int) (bool, int, error) {
	result, err := db.conn.Exec(`
		INSERT INTO likes (composition_id, user_id)
		VALUES (?, ?)
		ON CONFLICT(composition_id, user_id) DO NOTHING`,
		compositionID, userID)
	if err != nil {
		db.logger.WithError(err).WithField("composition_id", compositionID).Error("Failed to insert like")
		return false, 0, err
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, 0, err
	}

	liked := inserted > 0
	if !liked {
		if _, err := db.conn.Exec(
			"DELETE FROM likes WHERE composition_id = ? AND user_id = ?",
			compositionID, userID); err != nil {
			db.logger.WithError(err).WithField("composition_id", compositionID).Error("Failed to delete like")
			return false, 0, err
		}
	}

	count, err := db.LikeCount(compositionID)
	return liked, count, err
}

// LikeCount returns how many users have liked a composition.
func (db *Database) LikeCount(compositionID int) (int, error) {
	var count int
	err := db.likeCountStmt.QueryRow(compositionID).Scan(&count)
	return count, err
}

// AddComment stores a comment and returns it with the author name resolved.
func (db *Database) AddComment(compositionID, authorID int, content string) (*models.Comment, error) {
	result, err := db.conn.Exec(`
		INSERT INTO comments (composition_id, author_id, content)
		VALUES (?, ?, ?)`, compositionID, authorID, content)
	if err != nil {
		db.logger.WithError(err).WithField("composition_id", compositionID).Error("Failed to insert comment")
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.GetComment(int(id))
}

// GetComment returns a single comment by ID.
func (db *Database) GetComment(id int) (*models.Comment, error) {
	var c models.Comment
	err := db.conn.QueryRow(`
		SELECT cm.id, cm.composition_id, cm.author_id, u.username, cm.content, cm.created_at
		FROM comments cm
		JOIN users u ON u.id = cm.author_id
		WHERE cm.id = ?`, id).Scan(
		&c.ID, &c.CompositionID, &c.AuthorID, &c.AuthorName, &c.Content, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetComments returns a composition's comments, newest first.
func (db *Database) GetComments(compositionID int) ([]models.Comment, error) {
	rows, err := db.conn.Query(`
		SELECT cm.id, cm.composition_id, cm.author_id, u.username, cm.content, cm.created_at
		FROM comments cm
		JOIN users u ON u.id = cm.author_id
		WHERE cm.composition_id = ?
		ORDER BY cm.created_at DESC, cm.id DESC`, compositionID)
	if err != nil {
		db.logger.WithError(err).WithField("composition_id", compositionID).Error("Failed to query comments")
		return nil, err
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.CompositionID, &c.AuthorID, &c.AuthorName,
			&c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// DeleteComment removes a comment if the given user wrote it, in one
// conditional statement. Returns whether a row was deleted.
func (db *Database) DeleteComment(id, authorID int) (bool, error) {
	result, err := db.conn.Exec(
		"DELETE FROM comments WHERE id = ? AND author_id = ?", id, authorID)
	if err != nil {
		db.logger.WithError(err).WithField("comment_id", id).Error("Failed to delete comment")
		return false, err
	}

	n, err := result.RowsAffected()
	return n > 0, err
}

// CommentExists reports whether a comment row exists, for the 403/404 split.
func (db *Database) CommentExists(id int) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM comments WHERE id = ?", id).Scan(&count)
	return count > 0, err
}
