package sqlite

// Migrate creates the records table
func (l *SQLite) Migrate() error {
	sqlStmt := `
	create table if not exists records (seq INTEGER PRIMARY KEY, id TEXT NOT NULL, data BLOB NOT NULL);
	`
	_, err := l.db.Exec(sqlStmt)
	return err
}
