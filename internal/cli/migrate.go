package cli

import (
	"fmt"
	"io"

	"github.com/terraincognita07/labnotes/internal/db"
	"go.uber.org/zap"
)

// RunMigrateCommand opens the database, which applies any pending embedded
// migrations, and reports the recorded schema versions.
func RunMigrateCommand(dbPath string, out io.Writer, logger *zap.Logger) error {
	database, err := db.OpenSQLite(dbPath, logger)
	if err != nil {
		return fmt.Errorf("database init failed: %w", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	defer sqlDB.Close()

	names, err := db.AppliedMigrationNames(database)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Database ready at %s\n", dbPath)
	for _, name := range names {
		fmt.Fprintf(out, "  applied %s\n", name)
	}
	return nil
}
