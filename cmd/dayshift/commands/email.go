package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var emailCmd = &cobra.Command{
	Use:   "email <task-id> [instructions...]",
	Short: "Draft an email for a task",
	Long: `Draft an email for a task. The draft is attached to the task for you
to copy into your mail client; nothing is ever sent automatically.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEmail,
}

func init() {
	rootCmd.AddCommand(emailCmd)
}

func runEmail(cmd *cobra.Command, args []string) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	id, err := resolveTaskID(app, args[0])
	if err != nil {
		return err
	}
	instructions := strings.Join(args[1:], " ")

	draft, err := app.assistant.DraftEmail(cmd.Context(), id, instructions)
	if err != nil {
		return err
	}

	if len(draft.Recipients) > 0 {
		fmt.Printf("To: %s\n", strings.Join(draft.Recipients, ", "))
	}
	fmt.Printf("Subject: %s\n\n%s\n", draft.Subject, draft.Body)
	return nil
}
