package test

import (
	"fmt"
	"os"
	"testing"

	"github.com/avinash9807/Url-uploader-with-online-player/models/db"
	"github.com/avinash9807/Url-uploader-with-online-player/setup"
)

func SetUp(t testing.TB) {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" {
		os.Setenv("DATABASE_URL", "postgres://uploader@localhost:5432/uploader_test?sslmode=disable&timezone=UTC")
	}
	if err := setup.DB(setup.DefaultConnection, 10); err != nil {
		t.Fatal(err)
	}
}

// TruncateTables deletes all records from the database.
func TruncateTables(t testing.TB) error {
	var name string
	if t == nil {
		name = "TruncateTables"
	} else {
		name = t.Name()
	}
	_, err := db.Conn.Exec(fmt.Sprintf("-- %s\nDELETE FROM ingest_jobs", name))
	return err
}

// TearDown deletes all records from the database, and marks the test as failed
// if this was unsuccessful.
func TearDown(t testing.TB) {
	t.Helper()
	if db.Connected() {
		if err := TruncateTables(t); err != nil {
			t.Fatal(err)
		}
	}
}
