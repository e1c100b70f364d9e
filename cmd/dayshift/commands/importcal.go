package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var importCalCmd = &cobra.Command{
	Use:   "import-calendar",
	Short: "Create prep tasks from upcoming calendar events",
	Long: `Scan upcoming calendar events and create a preparation task for each
one that doesn't have one yet. Re-running is safe; already imported
events are skipped.`,
	RunE: runImportCalendar,
}

func init() {
	importCalCmd.Flags().Int("days", 7, "How many days ahead to scan")
	rootCmd.AddCommand(importCalCmd)
}

func runImportCalendar(cmd *cobra.Command, args []string) error {
	days, _ := cmd.Flags().GetInt("days")

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	now := time.Now()
	created, err := app.assistant.ImportCalendar(cmd.Context(), now, now.AddDate(0, 0, days))
	if err != nil {
		return err
	}

	if len(created) == 0 {
		fmt.Println("Nothing new to import.")
		return nil
	}
	fmt.Printf("Imported %d task(s):\n", len(created))
	for _, t := range created {
		fmt.Printf("  %s  %s (due %s)\n", shortID(t.ID), t.Title, t.DueDate.Format("Mon Jan 2 15:04"))
	}
	return nil
}
