package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/terraincognita07/labnotes/internal/db"
	"github.com/terraincognita07/labnotes/internal/models"
	"go.uber.org/zap"
)

// RunEntriesCommand prints every entry, newest first.
func RunEntriesCommand(dbPath string, out io.Writer, location *time.Location, logger *zap.Logger) error {
	database, err := db.OpenSQLite(dbPath, logger)
	if err != nil {
		return fmt.Errorf("database init failed: %w", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	defer sqlDB.Close()

	rows, err := db.NewEntryRepository(database).ListDashboardRows()
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}
	_, err = fmt.Fprintln(out, RenderEntriesTable(rows, location))
	return err
}

func RenderEntriesTable(rows []models.DashboardRow, location *time.Location) string {
	if location == nil {
		location = time.UTC
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "Date", "Title", "Notebook", "Photos", "Updated"})

	photos := 0
	for _, row := range rows {
		notebook := "-"
		if row.HasNotebook {
			notebook = "yes"
		}
		tw.AppendRow(table.Row{
			strconv.FormatUint(uint64(row.ID), 10),
			row.EntryDate,
			row.Title,
			notebook,
			strconv.Itoa(row.PhotoCount),
			row.UpdatedAt.In(location).Format("2006-01-02 15:04"),
		})
		photos += row.PhotoCount
	}
	tw.AppendFooter(table.Row{"", "", fmt.Sprintf("%d entries", len(rows)), "", strconv.Itoa(photos), ""})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft, AlignFooter: text.AlignRight},
	})
	return tw.Render()
}
