package cli

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/terraincognita07/labnotes/internal/db"
	"github.com/terraincognita07/labnotes/internal/models"
)

func TestRenderEntriesTable(t *testing.T) {
	t.Parallel()

	rendered := RenderEntriesTable([]models.DashboardRow{
		{ID: 2, EntryDate: "2024-03-06", Title: "Gel", PhotoCount: 3, HasNotebook: true, UpdatedAt: time.Date(2024, 3, 6, 9, 30, 0, 0, time.UTC)},
		{ID: 1, EntryDate: "2024-03-05", Title: "Setup", PhotoCount: 1},
	}, time.UTC)

	for _, expected := range []string{"ID", "Gel", "Setup", "2024-03-06 09:30", "yes", "2 entries", "4"} {
		if !strings.Contains(rendered, expected) {
			t.Fatalf("expected table to contain %q:\n%s", expected, rendered)
		}
	}
}

func TestRunMigrateAndEntriesCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "labnotes.db")

	var migrateOut bytes.Buffer
	if err := RunMigrateCommand(dbPath, &migrateOut, nil); err != nil {
		t.Fatalf("RunMigrateCommand returned error: %v", err)
	}
	if !strings.Contains(migrateOut.String(), "0001_init.sql") {
		t.Fatalf("expected applied migration listed, got %q", migrateOut.String())
	}

	database, err := db.OpenSQLite(dbPath, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := db.NewEntryRepository(database).CreateEntry("2024-03-05", "Listed entry", ""); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	_ = sqlDB.Close()

	var entriesOut bytes.Buffer
	if err := RunEntriesCommand(dbPath, &entriesOut, time.UTC, nil); err != nil {
		t.Fatalf("RunEntriesCommand returned error: %v", err)
	}
	if !strings.Contains(entriesOut.String(), "Listed entry") || !strings.Contains(entriesOut.String(), "1 entries") {
		t.Fatalf("unexpected entries output:\n%s", entriesOut.String())
	}
}
