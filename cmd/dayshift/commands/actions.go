package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/dayshift/internal/tasks"
)

var actionsCmd = &cobra.Command{
	Use:   "actions <task-id>",
	Short: "Break a task into actionable steps",
	Long: `Generate a typed action checklist for a task (emails to draft, calls
to make, things to book). Mark steps off with 'dayshift task check'.`,
	Args: cobra.ExactArgs(1),
	RunE: runActions,
}

func init() {
	rootCmd.AddCommand(actionsCmd)
}

func runActions(cmd *cobra.Command, args []string) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	id, err := resolveTaskID(app, args[0])
	if err != nil {
		return err
	}

	t, err := app.assistant.GenerateActions(cmd.Context(), id)
	if err != nil {
		return err
	}

	if art, ok := t.LatestArtifact(tasks.ArtifactActionPlan); ok && art.Plan != nil && art.Plan.Degraded {
		fmt.Println("The assistant was unavailable; this checklist was generated from the task text.")
	}
	printActions(t)
	return nil
}
