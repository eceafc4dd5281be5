package db

import (
	"path/filepath"
	"testing"
)

func TestNew_CreatesDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	tables := []string{"clips", "transitions", "config", "_migrations"}
	for _, table := range tables {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestNew_WALEnabled(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	var journalMode string
	err = database.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}

	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestNew_MigrationsIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	var count int
	err = db2.Conn().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count)
	if err != nil {
		t.Fatalf("count migrations error = %v", err)
	}

	if count != 3 {
		t.Errorf("migration count = %d, want 3", count)
	}
}

func TestNew_CascadesClipDelete(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	database, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	_, err = database.Conn().Exec(`
		INSERT INTO clips (id, track, start_us, duration_us, created_at)
		VALUES ('clip-a', 1, 0, 5000000, datetime('now'));
		INSERT INTO transitions (id, single_clip, ref_clip_id, created_at)
		VALUES ('tr-1', 1, 'clip-a', datetime('now'));
	`)
	if err != nil {
		t.Fatalf("insert error = %v", err)
	}

	if _, err := database.Conn().Exec("DELETE FROM clips WHERE id = 'clip-a'"); err != nil {
		t.Fatalf("delete clip error = %v", err)
	}

	var count int
	if err := database.Conn().QueryRow("SELECT COUNT(*) FROM transitions").Scan(&count); err != nil {
		t.Fatalf("count transitions error = %v", err)
	}
	if count != 0 {
		t.Errorf("transitions after clip delete = %d, want 0", count)
	}
}

func TestRemoveDanglingTransitions(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db1, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := db1.Conn().Exec("PRAGMA foreign_keys=OFF"); err != nil {
		t.Fatalf("disable foreign keys error = %v", err)
	}
	_, err = db1.Conn().Exec(`
		INSERT INTO transitions (id, single_clip, ref_clip_id, created_at)
		VALUES ('orphan', 1, 'missing-clip', datetime('now'))
	`)
	if err != nil {
		t.Fatalf("insert transition error = %v", err)
	}
	db1.Close()

	db2, err := New(dbPath, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	var count int
	err = db2.Conn().QueryRow("SELECT COUNT(*) FROM transitions WHERE id = 'orphan'").Scan(&count)
	if err != nil {
		t.Fatalf("query transition error = %v", err)
	}
	if count != 0 {
		t.Errorf("dangling transition survived reopen")
	}
}
