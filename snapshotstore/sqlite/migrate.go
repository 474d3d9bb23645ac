package sqlite

// Migrate creates the snapshot tables
func (s *SQLite) Migrate() error {
	sqlStmt := `
	create table if not exists snapshots (id INTEGER PRIMARY KEY, log_offset INTEGER NOT NULL, data BLOB NOT NULL);
	create table if not exists snapshot_latest (k INTEGER PRIMARY KEY CHECK (k = 1), id INTEGER NOT NULL);
	`
	_, err := s.db.Exec(sqlStmt)
	return err
}
