package sqlite_test

import (
	sqldriver "database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prevaildb/prevail/snapshotstore/sqlite"
	"github.com/prevaildb/prevail/snapshotstore/suite"
)

func TestSuite(t *testing.T) {
	var db *sqldriver.DB
	f := func() (suite.Store, func(), error) {
		var err error
		db, err = sqldriver.Open("sqlite3", filepath.Join(t.TempDir(), "snapshots.db"))
		if err != nil {
			return nil, nil, err
		}
		store := sqlite.Open(db)
		if err := store.Migrate(); err != nil {
			return nil, nil, err
		}
		return store, func() {
			store.Close()
		}, nil
	}
	plant := func(_ suite.Store, id uint64) error {
		_, err := db.Exec(`INSERT INTO snapshots (id, log_offset, data) VALUES (?, ?, ?)`, id, 99, []byte(`torn`))
		return err
	}
	suite.Test(t, f, plant)
}
