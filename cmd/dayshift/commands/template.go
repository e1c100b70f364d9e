package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/dayshift/internal/templates"
)

var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"templates"},
	Short:   "Manage recurring task templates",
	Long: `Recurring templates generate tasks on a schedule (weekly review, meal
planning, monthly finances). The daemon runs them; 'template run'
forces a sweep now.`,
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		tpls, err := app.templates.ListActive(app.cfg.Owner)
		if err != nil {
			return err
		}
		if len(tpls) == 0 {
			fmt.Println("No active templates.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tTITLE\tDOMAIN\tSCHEDULE\tLAST GENERATED")
		for _, tpl := range tpls {
			schedule := tpl.Frequency
			if tpl.CronExpression != "" {
				schedule = tpl.CronExpression
			}
			last := "never"
			if tpl.LastGenerated != nil {
				last = tpl.LastGenerated.Format("Jan 2 15:04")
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", tpl.ID, tpl.Title, tpl.Domain, schedule, last)
		}
		return w.Flush()
	},
}

var templateRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate due template tasks now",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		engine := templates.New(app.templates, app.repo, app.cfg.Owner)
		n, err := engine.GenerateDue(time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("generated %d task(s)\n", n)
		return nil
	},
}

var templateOffCmd = &cobra.Command{
	Use:   "off <template-id>",
	Short: "Deactivate a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.templates.Deactivate(args[0]); err != nil {
			return err
		}
		fmt.Printf("deactivated %s\n", args[0])
		return nil
	},
}

func init() {
	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateRunCmd)
	templateCmd.AddCommand(templateOffCmd)
	rootCmd.AddCommand(templateCmd)
}
