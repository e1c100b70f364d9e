package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/dayshift/internal/calendar"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize Google Calendar access",
	Long: `Run the OAuth flow for Google Calendar. Opens a local listener for
the redirect; visit the printed URL in a browser and approve access.

Requires client credentials at the configured calendar.credentials_file
path (download them from the Google Cloud console).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := calendar.Authorize(cmd.Context(), cfg.CalendarConfig()); err != nil {
			return err
		}
		fmt.Println("calendar authorized; enable it with calendar.enabled: true")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
}
