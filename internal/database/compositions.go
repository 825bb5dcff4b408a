package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"mathemelody/pkg/models"
)

// compositionSelectWithLiked is the shared projection for composition
// queries. The like and comment counts are derived on every read;
// compositions are small and the subqueries ride on covering indices. The
// liked column reports whether the bound viewer has liked each row; the
// viewer ID is the first query parameter, 0 for anonymous requests.
const compositionSelectWithLiked = `
	SELECT c.id, c.owner_id, u.username, c.title, c.description, c.equations,
	       c.tempo, c.wave_type, c.public, c.play_count, c.created_at, c.updated_at,
	       (SELECT COUNT(*) FROM likes l WHERE l.composition_id = c.id) AS like_count,
	       (SELECT COUNT(*) FROM comments cm WHERE cm.composition_id = c.id) AS comment_count,
	       EXISTS(SELECT 1 FROM likes lv WHERE lv.composition_id = c.id AND lv.user_id = ?) AS liked
	FROM compositions c
	JOIN users u ON u.id = c.owner_id`

// InsertComposition stores a new composition and returns its ID.
func (db *Database) InsertComposition(c *models.Composition) (int, error) {
	equations, err := json.Marshal(c.Equations)
	if err != nil {
		return 0, fmt.Errorf("failed to encode equations: %w", err)
	}

	result, err := db.conn.Exec(`
		INSERT INTO compositions (owner_id, title, description, equations, tempo, wave_type, public)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.OwnerID, c.Title, c.Description, string(equations),
		c.Settings.Tempo, c.Settings.WaveType, c.Public)
	if err != nil {
		db.logger.WithError(err).WithField("owner_id", c.OwnerID).Error("Failed to insert composition")
		return 0, err
	}

	id, err := result.LastInsertId()
	return int(id), err
}

// GetComposition returns a single composition by ID with counts filled in.
// viewerID controls the liked flag only; visibility is the caller's concern.
func (db *Database) GetComposition(id, viewerID int) (*models.Composition, error) {
	row := db.conn.QueryRow(compositionSelectWithLiked+` WHERE c.id = ?`, viewerID, id)
	comp, err := scanComposition(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		db.logger.WithError(err).WithField("composition_id", id).Error("Failed to get composition")
		return nil, err
	}
	return comp, nil
}

// GetCompositionsByOwner returns all of a user's compositions, newest first.
func (db *Database) GetCompositionsByOwner(ownerID int) ([]models.Composition, error) {
	rows, err := db.conn.Query(compositionSelectWithLiked+`
		WHERE c.owner_id = ?
		ORDER BY c.created_at DESC, c.id DESC`, ownerID, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCompositionRows(rows)
}

// UpdateComposition rewrites a composition's content in a single conditional
// statement keyed on both ID and owner, so a non-owner mutates zero rows
// instead of racing a separate ownership check. Returns whether a row changed.
func (db *Database) UpdateComposition(c models.Composition) (bool, error) {
	equations, err := json.Marshal(c.Equations)
	if err != nil {
		return false, fmt.Errorf("failed to encode equations: %w", err)
	}

	result, err := db.conn.Exec(`
		UPDATE compositions
		SET title = ?, description = ?, equations = ?, tempo = ?, wave_type = ?, public = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND owner_id = ?`,
		c.Title, c.Description, string(equations),
		c.Settings.Tempo, c.Settings.WaveType, c.Public,
		c.ID, c.OwnerID)
	if err != nil {
		db.logger.WithError(err).WithField("composition_id", c.ID).Error("Failed to update composition")
		return false, err
	}

	n, err := result.RowsAffected()
	return n > 0, err
}

// DeleteComposition removes a composition if it belongs to the given owner.
// Likes and comments cascade. Returns whether a row was deleted.
func (db *Database) DeleteComposition(id, ownerID int) (bool, error) {
	result, err := db.conn.Exec(
		"DELETE FROM compositions WHERE id = ? AND owner_id = ?", id, ownerID)
	if err != nil {
		db.logger.WithError(err).WithField("composition_id", id).Error("Failed to delete composition")
		return false, err
	}

	n, err := result.RowsAffected()
	return n > 0, err
}

// CompositionExists reports whether a composition row exists at all,
// regardless of visibility. Used to split 403 from 404 after a conditional
// write touched zero rows.
func (db *Database) CompositionExists(id int) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM compositions WHERE id = ?", id).Scan(&count)
	return count > 0, err
}

// IncrementPlayCount bumps a composition's play counter.
func (db *Database) IncrementPlayCount(id int) error {
	_, err := db.incrementPlaysStmt.Exec(id)
	if err != nil {
		db.logger.WithError(err).WithField("composition_id", id).Error("Failed to increment play count")
	}
	return err
}

// Gallery sort orders
const (
	SortRecent   = "recent"
	SortPopular  = "popular"
	SortTrending = "trending"
)

// Gallery returns one page of the public feed plus the total number of
// public compositions. trending ranks by likes received in the last seven
// days, then play count; popular by all-time likes; recent by creation time.
func (db *Database) Gallery(sort string, limit, offset, viewerID int) ([]models.Composition, int, error) {
	var order string
	switch sort {
	case SortPopular:
		order = "like_count DESC, c.created_at DESC, c.id DESC"
	case SortTrending:
		order = "recent_likes DESC, c.play_count DESC, c.created_at DESC, c.id DESC"
	default: // recent
		order = "c.created_at DESC, c.id DESC"
	}

	query := compositionSelectWithLiked
	if sort == SortTrending {
		query = `
	SELECT c.id, c.owner_id, u.username, c.title, c.description, c.equations,
	       c.tempo, c.wave_type, c.public, c.play_count, c.created_at, c.updated_at,
	       (SELECT COUNT(*) FROM likes l WHERE l.composition_id = c.id) AS like_count,
	       (SELECT COUNT(*) FROM comments cm WHERE cm.composition_id = c.id) AS comment_count,
	       EXISTS(SELECT 1 FROM likes lv WHERE lv.composition_id = c.id AND lv.user_id = ?) AS liked,
	       (SELECT COUNT(*) FROM likes lr WHERE lr.composition_id = c.id
	            AND lr.created_at >= datetime('now', '-7 days')) AS recent_likes
	FROM compositions c
	JOIN users u ON u.id = c.owner_id`
	}

	rows, err := db.conn.Query(
		query+` WHERE c.public ORDER BY `+order+` LIMIT ? OFFSET ?`,
		viewerID, limit, offset)
	if err != nil {
		db.logger.WithError(err).WithField("sort", sort).Error("Failed to query gallery")
		return nil, 0, err
	}
	defer rows.Close()

	var compositions []models.Composition
	if sort == SortTrending {
		compositions, err = scanTrendingRows(rows)
	} else {
		compositions, err = scanCompositionRows(rows)
	}
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM compositions WHERE public").Scan(&total); err != nil {
		return nil, 0, err
	}
	return compositions, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanComposition scans one row of the liked projection.
func scanComposition(row rowScanner) (*models.Composition, error) {
	var c models.Composition
	var equations string
	err := row.Scan(&c.ID, &c.OwnerID, &c.OwnerName, &c.Title, &c.Description,
		&equations, &c.Settings.Tempo, &c.Settings.WaveType, &c.Public,
		&c.PlayCount, &c.CreatedAt, &c.UpdatedAt,
		&c.LikeCount, &c.CommentCount, &c.Liked)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(equations), &c.Equations); err != nil {
		return nil, fmt.Errorf("corrupt equations for composition %d: %w", c.ID, err)
	}
	return &c, nil
}

// scanCompositionRows scans liked-projection result sets into a slice.
// Callers must have already deferred rows.Close().
func scanCompositionRows(rows *sql.Rows) ([]models.Composition, error) {
	var compositions []models.Composition
	for rows.Next() {
		c, err := scanComposition(rows)
		if err != nil {
			return nil, err
		}
		compositions = append(compositions, *c)
	}
	return compositions, rows.Err()
}

// scanTrendingRows handles the trending projection, which carries an extra
// recent_likes column the model does not keep.
func scanTrendingRows(rows *sql.Rows) ([]models.Composition, error) {
	var compositions []models.Composition
	for rows.Next() {
		var c models.Composition
		var equations string
		var recentLikes int
		err := rows.Scan(&c.ID, &c.OwnerID, &c.OwnerName, &c.Title, &c.Description,
			&equations, &c.Settings.Tempo, &c.Settings.WaveType, &c.Public,
			&c.PlayCount, &c.CreatedAt, &c.UpdatedAt,
			&c.LikeCount, &c.CommentCount, &c.Liked, &recentLikes)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(equations), &c.Equations); err != nil {
			return nil, fmt.Errorf("corrupt equations for composition %d: %w", c.ID, err)
		}
		compositions = append(compositions, c)
	}
	return compositions, rows.Err()
}
