package adapters

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLRow is one row of nullable string cells, as returned by SQLiteRead.
type SQLRow []sql.NullString

// SQLiteRead opens path read-only and immutable (so a concurrently-written
// TCC.db or credential store never blocks or corrupts this read), runs the
// given query, and returns rows of nullable strings. Empty on any open,
// lock, or permission failure — callers never see a SQL error.
func SQLiteRead(path, query string) []SQLRow {
	dsn := fmt.Sprintf("file:%s?mode=ro&immutable=1", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil
	}
	defer db.Close()

	rows, err := db.Query(query)
	if err != nil {
		return nil
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil
	}

	var out []SQLRow
	for rows.Next() {
		scan := make([]any, len(cols))
		row := make(SQLRow, len(cols))
		for i := range row {
			scan[i] = &row[i]
		}
		if rows.Scan(scan...) != nil {
			return out
		}
		out = append(out, row)
	}
	return out
}
