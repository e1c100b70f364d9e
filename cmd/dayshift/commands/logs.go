package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/marcus/dayshift/internal/db"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent AI interactions",
	Long: `Show the audit trail of AI calls: which agent ran, whether it
succeeded, how many attempts it took, and how long it waited.

Use --request to see every attempt of one request.`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().IntP("last", "n", 20, "Show last N interactions")
	logsCmd.Flags().String("request", "", "Show all attempts for a request id")
	logsCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	last, _ := cmd.Flags().GetInt("last")
	requestID, _ := cmd.Flags().GetString("request")
	asJSON, _ := cmd.Flags().GetBool("json")

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	var recs []*db.Interaction
	if requestID != "" {
		recs, err = app.interactions.ByRequest(requestID)
	} else {
		recs, err = app.interactions.Recent(last)
	}
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}

	if len(recs) == 0 {
		fmt.Println("No AI interactions recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME\tAGENT\tREQUEST\tATTEMPT\tRESULT\tLATENCY")
	for _, r := range recs {
		result := "ok"
		if !r.Success {
			result = "fail: " + truncateText(r.Error, 40)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%dms\n",
			r.CreatedAt.Format("Jan 2 15:04:05"),
			r.AgentKind,
			shortID(r.RequestID),
			r.Attempt,
			result,
			r.LatencyMS,
		)
	}
	return w.Flush()
}
