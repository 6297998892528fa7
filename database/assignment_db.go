package database

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// AssignmentReader serves the permission resolver's hot lookup over the raw
// connection: no ORM session, one indexed point query per decision. Every
// resolution path re-queries; there is deliberately no cache in front.
type AssignmentReader struct {
	DB *sql.DB
}

func NewAssignmentReader(db *sql.DB) *AssignmentReader {
	return &AssignmentReader{DB: db}
}

// RoleForUser returns the role the user holds on the page, if any. Absence is
// a valid state and reported via found=false. The (page_id, user_id) unique
// index guarantees at most one matching row.
func (r *AssignmentReader) RoleForUser(pageID, userID uint) (string, bool, error) {
	queryBuilder := psql.Select("role").
		From("page_role_assignments").
		Where(sq.Eq{"page_id": pageID, "user_id": userID}).
		Limit(1)

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return "", false, fmt.Errorf("failed to build SQL query for RoleForUser: %w", err)
	}

	var role string
	err = r.DB.QueryRow(sqlStr, args...).Scan(&role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to query page role for user %d on page %d: %w", userID, pageID, err)
	}
	return role, true, nil
}
