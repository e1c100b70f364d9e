package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marcus/dayshift/internal/service"
	"github.com/marcus/dayshift/internal/tasks"
)

var captureCmd = &cobra.Command{
	Use:   "capture [text...]",
	Short: "Capture a thought and turn it into tasks",
	Long: `Capture a free-form brain dump and let the assistant split it into
structured tasks.

Pass the text as arguments, or use --audio to transcribe a recording
first. A single capture can produce several tasks:

  dayshift capture "book the kids' vaccines and email the accountant about Q3"`,
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().String("audio", "", "Audio file to transcribe instead of text")
	captureCmd.Flags().String("location", "", "Where you are (helps later recommendations)")
	captureCmd.AddCommand(captureShowCmd)
	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, args []string) error {
	audioPath, _ := cmd.Flags().GetString("audio")
	location, _ := cmd.Flags().GetString("location")

	req := service.CaptureRequest{
		Transcript: strings.Join(args, " "),
		Location:   location,
	}
	if audioPath != "" {
		data, err := os.ReadFile(audioPath)
		if err != nil {
			return fmt.Errorf("reading audio: %w", err)
		}
		req.Audio = data
		req.Source = tasks.SourceVoice
	}
	if req.Transcript == "" && len(req.Audio) == 0 {
		return fmt.Errorf("nothing to capture: pass text or --audio")
	}

	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	out, err := app.assistant.CaptureAndParse(cmd.Context(), req)
	if err != nil {
		return err
	}

	if out.Degraded {
		fmt.Println("The assistant was unavailable; your capture is saved as a single task to revisit.")
	} else if out.Session.Summary != "" {
		fmt.Println(out.Session.Summary)
	}

	fmt.Printf("\nCreated %d task(s):\n", len(out.Tasks))
	for _, t := range out.Tasks {
		due := ""
		if t.DueDate != nil {
			due = " due " + t.DueDate.Format("Jan 2")
		}
		fmt.Printf("  %s  [%s] %s%s\n", shortID(t.ID), t.Domain, t.Title, due)
	}
	return nil
}

var captureShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a capture session and its tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		cs, err := app.repo.GetCaptureSession(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Capture %s (%s, %.0f%% confidence)\n", shortID(cs.ID), cs.Source, cs.Confidence*100)
		fmt.Printf("  %s\n", cs.Transcript)
		if len(cs.TaskIDs) > 0 {
			fmt.Println("Tasks:")
			for _, id := range cs.TaskIDs {
				fmt.Printf("  %s\n", shortID(id))
			}
		}
		return nil
	},
}
