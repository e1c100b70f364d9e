package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var researchCmd = &cobra.Command{
	Use:   "research <query...>",
	Short: "Research options for a decision",
	Long: `Compare options for a decision, with pros and cons and one
recommendation. Attach the result to a task with --task:

  dayshift research "standing desks under $500" --task 3f2a`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().StringP("task", "t", "", "Attach the result to this task")
	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	taskRef, _ := cmd.Flags().GetString("task")

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	taskID := ""
	if taskRef != "" {
		taskID, err = resolveTaskID(app, taskRef)
		if err != nil {
			return err
		}
	}

	opts, err := app.assistant.Research(cmd.Context(), strings.Join(args, " "), taskID)
	if err != nil {
		return err
	}

	if opts.Summary != "" {
		fmt.Println(opts.Summary)
		fmt.Println()
	}
	for i, o := range opts.Options {
		marker := " "
		if o.Recommended {
			marker = "*"
		}
		fmt.Printf("%s %d. %s", marker, i+1, o.Title)
		if o.PriceRange != "" {
			fmt.Printf("  %s", o.PriceRange)
		}
		fmt.Println()
		if o.Description != "" {
			fmt.Printf("     %s\n", o.Description)
		}
		for _, p := range o.Pros {
			fmt.Printf("     + %s\n", p)
		}
		for _, c := range o.Cons {
			fmt.Printf("     - %s\n", c)
		}
	}
	if opts.Recommendation != "" {
		fmt.Printf("\n%s\n", opts.Recommendation)
	}
	return nil
}
