package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan <task-id>",
	Short: "Propose time slots for a task",
	Long: `Ask the assistant to propose time slots for a triaged task, working
around your existing calendar commitments. Accept one with
'dayshift schedule'.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule <task-id> <slot-number>",
	Short: "Accept a proposed slot and put it on the calendar",
	Long: `Commit one of the slots proposed by 'dayshift plan'. Slot numbers
are 1-based as printed. Tasks that need a calendar block get one
booked.`,
	Args: cobra.ExactArgs(2),
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	id, err := resolveTaskID(app, args[0])
	if err != nil {
		return err
	}

	plan, err := app.assistant.PlanTask(cmd.Context(), id)
	if err != nil {
		return err
	}

	if plan.Reasoning != "" {
		fmt.Println(plan.Reasoning)
		fmt.Println()
	}
	for i, slot := range plan.Slots {
		fmt.Printf("%d. %s - %s", i+1,
			slot.Start.Format("Mon Jan 2 15:04"), slot.End.Format("15:04"))
		if slot.Reason != "" {
			fmt.Printf("  %s", slot.Reason)
		}
		fmt.Println()
	}
	for _, c := range plan.Conflicts {
		fmt.Printf("conflict: %s\n", c)
	}
	fmt.Printf("\nAccept with: dayshift schedule %s <slot-number>\n", shortID(id))
	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	slot, err := strconv.Atoi(args[1])
	if err != nil || slot < 1 {
		return fmt.Errorf("slot number must be a positive integer, got %q", args[1])
	}

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	id, err := resolveTaskID(app, args[0])
	if err != nil {
		return err
	}

	t, err := app.assistant.ScheduleTask(cmd.Context(), id, slot-1)
	if err != nil {
		return err
	}

	fmt.Printf("scheduled %s: %s\n", shortID(t.ID), t.Title)
	if t.LinkedEventID != "" {
		fmt.Printf("calendar block booked (%s)\n", t.LinkedEventID)
	}
	return nil
}
