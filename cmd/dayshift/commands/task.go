package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/dayshift/internal/service"
	"github.com/marcus/dayshift/internal/tasks"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
	Long:  `List, add, inspect, and move tasks through their lifecycle.`,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open tasks",
	Long: `List tasks sorted by creation time.

Open tasks only by default; use --all to include done and cancelled.
Filter with --domain and --status, or get JSON with --json.`,
	RunE: runTaskList,
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title...>",
	Short: "Add a task directly",
	Long: `Add a task without going through capture. The task enters triaged
with its priority computed from what you provide.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTaskAdd,
}

var taskShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskShow,
}

var taskEditCmd = &cobra.Command{
	Use:   "edit <task-id>",
	Short: "Edit task fields",
	Long: `Change task fields; the priority is recomputed. Only the flags you
pass are changed. Use --clear-due to remove a due date.`,
	Args: cobra.ExactArgs(1),
	RunE: runTaskEdit,
}

var taskStartCmd = &cobra.Command{
	Use:   "start <task-id>",
	Short: "Start working on a task",
	Args:  cobra.ExactArgs(1),
	RunE:  transitionRunE(func(a *app, id string) (*tasks.Task, error) { return a.assistant.StartTask(id) }, "started"),
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <task-id>",
	Short: "Mark a task done",
	Args:  cobra.ExactArgs(1),
	RunE:  transitionRunE(func(a *app, id string) (*tasks.Task, error) { return a.assistant.CompleteTask(id) }, "done"),
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a task",
	Args:  cobra.ExactArgs(1),
	RunE:  transitionRunE(func(a *app, id string) (*tasks.Task, error) { return a.assistant.CancelTask(id) }, "cancelled"),
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Delete a task permanently",
	Long:  `Remove a task and its history. Prefer cancel; delete exists for mistakes.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		id, err := resolveTaskID(app, args[0])
		if err != nil {
			return err
		}
		if err := app.assistant.DeleteTask(id); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", shortID(id))
		return nil
	},
}

var taskCheckCmd = &cobra.Command{
	Use:   "check <task-id> <action-id>",
	Short: "Mark one action of a task done",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		id, err := resolveTaskID(app, args[0])
		if err != nil {
			return err
		}
		t, err := app.assistant.CompleteAction(id, args[1])
		if err != nil {
			return err
		}
		printActions(t)
		return nil
	},
}

func init() {
	taskListCmd.Flags().String("domain", "", "Filter by domain (family, home, job, company, personal)")
	taskListCmd.Flags().String("status", "", "Filter by status")
	taskListCmd.Flags().Bool("all", false, "Include done and cancelled tasks")
	taskListCmd.Flags().Bool("json", false, "Output as JSON")

	taskAddCmd.Flags().StringP("domain", "d", "personal", "Life domain")
	taskAddCmd.Flags().String("desc", "", "Longer description")
	taskAddCmd.Flags().String("due", "", "Due date (2006-01-02 or 2006-01-02 15:04)")
	taskAddCmd.Flags().Int("duration", 0, "Estimated minutes")
	taskAddCmd.Flags().Int("importance", 0, "Importance 1-5 (default 3)")
	taskAddCmd.Flags().Int("urgency", 0, "Urgency 1-5 (default derived from due date)")
	taskAddCmd.Flags().Bool("block", false, "Needs a calendar block")

	taskEditCmd.Flags().String("title", "", "New title")
	taskEditCmd.Flags().String("desc", "", "New description")
	taskEditCmd.Flags().String("domain", "", "New domain")
	taskEditCmd.Flags().String("due", "", "New due date")
	taskEditCmd.Flags().Bool("clear-due", false, "Remove the due date")
	taskEditCmd.Flags().Int("duration", -1, "New estimated minutes")
	taskEditCmd.Flags().Int("importance", 0, "New importance 1-5")
	taskEditCmd.Flags().Int("urgency", 0, "New urgency 1-5")

	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskEditCmd)
	taskCmd.AddCommand(taskStartCmd)
	taskCmd.AddCommand(taskDoneCmd)
	taskCmd.AddCommand(taskCancelCmd)
	taskCmd.AddCommand(taskDeleteCmd)
	taskCmd.AddCommand(taskCheckCmd)
	rootCmd.AddCommand(taskCmd)
}

func transitionRunE(move func(*app, string) (*tasks.Task, error), verb string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		id, err := resolveTaskID(app, args[0])
		if err != nil {
			return err
		}
		t, err := move(app, id)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s: %s\n", verb, shortID(t.ID), t.Title)
		return nil
	}
}

func runTaskList(cmd *cobra.Command, args []string) error {
	domain, _ := cmd.Flags().GetString("domain")
	status, _ := cmd.Flags().GetString("status")
	all, _ := cmd.Flags().GetBool("all")
	asJSON, _ := cmd.Flags().GetBool("json")

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	f := tasks.ListFilter{
		Domain:      tasks.Domain(domain),
		Status:      tasks.Status(status),
		NonTerminal: !all && status == "",
	}
	list, err := app.assistant.ListTasks(f)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Println("No tasks.")
		return nil
	}

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTITLE\tDOMAIN\tSTATUS\tPRIORITY\tDUE")
	for _, t := range list {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(t.ID),
			truncateText(t.Title, 48),
			t.Domain,
			t.Status,
			t.Priority,
			formatDue(t, now),
		)
	}
	return w.Flush()
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	domain, _ := cmd.Flags().GetString("domain")
	desc, _ := cmd.Flags().GetString("desc")
	due, _ := cmd.Flags().GetString("due")
	duration, _ := cmd.Flags().GetInt("duration")
	importance, _ := cmd.Flags().GetInt("importance")
	urgency, _ := cmd.Flags().GetInt("urgency")
	block, _ := cmd.Flags().GetBool("block")

	p := service.CreateTaskParams{
		Title:                 strings.Join(args, " "),
		Description:           desc,
		Domain:                tasks.Domain(domain),
		EstimatedDurationMin:  duration,
		RequiresCalendarBlock: block,
		Importance:            importance,
		Urgency:               urgency,
	}
	if due != "" {
		d, err := parseDue(due)
		if err != nil {
			return err
		}
		p.DueDate = &d
	}

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	t, err := app.assistant.CreateTask(p)
	if err != nil {
		return err
	}
	fmt.Printf("added %s: %s [%s, %s]\n", shortID(t.ID), t.Title, t.Domain, t.Priority)
	return nil
}

func runTaskShow(cmd *cobra.Command, args []string) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	id, err := resolveTaskID(app, args[0])
	if err != nil {
		return err
	}
	t, err := app.assistant.GetTask(id)
	if err != nil {
		return err
	}

	fmt.Printf("%s  %s\n", t.Title, t.ID)
	if t.Description != "" {
		fmt.Printf("  %s\n", t.Description)
	}
	fmt.Printf("  domain: %s  status: %s  priority: %s (%.2f)\n", t.Domain, t.Status, t.Priority, t.PriorityScore)
	fmt.Printf("  importance: %d  urgency: %d  source: %s\n", t.Importance, t.Urgency, t.Source)
	if t.DueDate != nil {
		fmt.Printf("  due: %s\n", t.DueDate.Format("Mon Jan 2 15:04"))
	}
	if t.EstimatedDurationMin > 0 {
		fmt.Printf("  estimate: %dm\n", t.EstimatedDurationMin)
	}
	if t.LinkedEventID != "" {
		fmt.Printf("  calendar event: %s\n", t.LinkedEventID)
	}

	printActions(t)

	for _, art := range t.Artifacts {
		fmt.Printf("\n[%s] %s\n", art.Kind, art.CreatedAt.Format("Jan 2 15:04"))
		switch {
		case art.Planning != nil:
			for i, slot := range art.Planning.Slots {
				fmt.Printf("  %d. %s - %s  %s\n", i+1,
					slot.Start.Format("Mon Jan 2 15:04"), slot.End.Format("15:04"), slot.Reason)
			}
		case art.Email != nil:
			fmt.Printf("  Subject: %s\n", art.Email.Subject)
		case art.Research != nil:
			fmt.Printf("  %s (%d options)\n", art.Research.Query, len(art.Research.Options))
		case art.Plan != nil && art.Plan.Reasoning != "":
			fmt.Printf("  %s\n", truncateText(art.Plan.Reasoning, 120))
		}
	}
	return nil
}

func printActions(t *tasks.Task) {
	if len(t.Actions) == 0 {
		return
	}
	fmt.Println("\nActions:")
	for _, act := range t.Actions {
		mark := " "
		if act.Status == tasks.ActionDone {
			mark = "x"
		}
		fmt.Printf("  [%s] %s (%s)  %s\n", mark, act.Label, act.Type, act.ID)
	}
}

func runTaskEdit(cmd *cobra.Command, args []string) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	id, err := resolveTaskID(app, args[0])
	if err != nil {
		return err
	}

	var p service.UpdateTaskParams
	if cmd.Flags().Changed("title") {
		v, _ := cmd.Flags().GetString("title")
		p.Title = &v
	}
	if cmd.Flags().Changed("desc") {
		v, _ := cmd.Flags().GetString("desc")
		p.Description = &v
	}
	if cmd.Flags().Changed("domain") {
		v, _ := cmd.Flags().GetString("domain")
		d := tasks.Domain(v)
		p.Domain = &d
	}
	if cmd.Flags().Changed("due") {
		v, _ := cmd.Flags().GetString("due")
		d, err := parseDue(v)
		if err != nil {
			return err
		}
		p.DueDate = &d
	}
	if v, _ := cmd.Flags().GetBool("clear-due"); v {
		p.ClearDueDate = true
	}
	if cmd.Flags().Changed("duration") {
		v, _ := cmd.Flags().GetInt("duration")
		p.EstimatedDurationMin = &v
	}
	if cmd.Flags().Changed("importance") {
		v, _ := cmd.Flags().GetInt("importance")
		p.Importance = &v
	}
	if cmd.Flags().Changed("urgency") {
		v, _ := cmd.Flags().GetInt("urgency")
		p.Urgency = &v
	}

	t, err := app.assistant.UpdateTask(id, p)
	if err != nil {
		return err
	}
	fmt.Printf("updated %s: %s [%s]\n", shortID(t.ID), t.Title, t.Priority)
	return nil
}
