package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marcus/dayshift/internal/recommend"
)

var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "What should I do right now",
	Long: `Rank your open tasks against the current moment and suggest the top
few, with reasons.

Tell it how much time you have, how you're feeling, and where you are:

  dayshift now --minutes 15 --energy low --location home`,
	RunE: runNow,
}

func init() {
	nowCmd.Flags().IntP("minutes", "m", 0, "Minutes available (0 = unconstrained)")
	nowCmd.Flags().StringP("energy", "e", "", "Energy level (low, normal, high)")
	nowCmd.Flags().StringP("location", "l", "", "Current location")
	nowCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(nowCmd)
}

func runNow(cmd *cobra.Command, args []string) error {
	minutes, _ := cmd.Flags().GetInt("minutes")
	energy, _ := cmd.Flags().GetString("energy")
	location, _ := cmd.Flags().GetString("location")
	asJSON, _ := cmd.Flags().GetBool("json")

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.assistant.RecommendNow(cmd.Context(), recommend.Context{
		AvailableMinutes: minutes,
		Energy:           energy,
		Location:         location,
	})
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if len(res.Recommendations) == 0 {
		fmt.Println(res.Summary)
		return nil
	}

	fmt.Println(res.Summary)
	fmt.Println()
	for i, rec := range res.Recommendations {
		t := rec.Task
		dur := ""
		if t.EstimatedDurationMin > 0 {
			dur = fmt.Sprintf(" (~%dm)", t.EstimatedDurationMin)
		}
		fmt.Printf("%d. %s%s  [%s/%s]\n", i+1, t.Title, dur, t.Domain, rec.Tier)
		fmt.Printf("   %s  %s\n", shortID(t.ID), rec.Reason)
	}
	return nil
}
