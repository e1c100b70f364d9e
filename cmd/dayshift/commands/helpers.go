package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/dayshift/internal/agents"
	"github.com/marcus/dayshift/internal/calendar"
	"github.com/marcus/dayshift/internal/config"
	"github.com/marcus/dayshift/internal/db"
	"github.com/marcus/dayshift/internal/logging"
	"github.com/marcus/dayshift/internal/orchestrator"
	"github.com/marcus/dayshift/internal/provider"
	"github.com/marcus/dayshift/internal/recommend"
	"github.com/marcus/dayshift/internal/service"
	"github.com/marcus/dayshift/internal/tasks"
)

// app bundles the wired-up collaborators a command needs.
type app struct {
	cfg          *config.Config
	database     *db.DB
	repo         *db.TaskStore
	interactions *db.InteractionStore
	templates    *db.TemplateStore
	cal          calendar.Calendar
	assistant    *service.Assistant
}

func loadConfigFromFlags(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func initLogging(cfg *config.Config) error {
	return logging.Init(cfg.LoggingConfig())
}

// openApp loads config and wires the full assistant stack. Callers must
// Close the returned app.
func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return nil, err
	}
	if err := initLogging(cfg); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	repo := db.NewTaskStore(database)
	interactions := db.NewInteractionStore(database)
	templateStore := db.NewTemplateStore(database)

	if cfg.Provider.APIKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
		fmt.Fprintln(os.Stderr, "warning: no API key configured; agent commands will fail (set provider.api_key or DAYSHIFT_PROVIDER_API_KEY)")
	}
	prov := provider.NewOpenAIProvider(cfg.ProviderConfig())
	orch := orchestrator.New(prov, interactions, cfg.OrchestratorConfig())

	agentCfg := agents.DefaultConfig()
	if cfg.Provider.Model != "" {
		agentCfg.Model = cfg.Provider.Model
	}

	var cal calendar.Calendar
	if cfg.Calendar.Enabled {
		gc, err := calendar.NewGoogle(cmd.Context(), cfg.CalendarConfig())
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: calendar unavailable: %v\n", err)
		} else {
			cal = gc
		}
	}

	sc := cfg.ScoringConfig()
	assistant := service.New(service.Deps{
		Repo:        repo,
		Capture:     agents.NewCaptureAgent(orch, agentCfg),
		Planner:     agents.NewPlanningAgent(orch, agentCfg),
		Email:       agents.NewEmailAgent(orch, agentCfg),
		Research:    agents.NewResearchAgent(orch, agentCfg),
		Workflow:    agents.NewWorkflowAgent(orch, agentCfg),
		Transcriber: prov,
		Calendar:    cal,
		Engine:      recommend.New(cfg.RecommendConfig(), sc),
		Scoring:     sc,
		OwnerID:     cfg.Owner,
	})

	return &app{
		cfg:          cfg,
		database:     database,
		repo:         repo,
		interactions: interactions,
		templates:    templateStore,
		cal:          cal,
		assistant:    assistant,
	}, nil
}

func (a *app) Close() {
	if a.database != nil {
		_ = a.database.Close()
	}
}

// parseDue accepts the date formats people actually type.
func parseDue(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
	} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (try 2006-01-02 or 2006-01-02 15:04)", s)
}

func formatDue(t *tasks.Task, now time.Time) string {
	if t.DueDate == nil {
		return "-"
	}
	d := *t.DueDate
	switch {
	case d.Before(now):
		return d.Format("Jan 2") + " (overdue)"
	case d.Sub(now) < 48*time.Hour:
		return d.Format("Mon 15:04")
	default:
		return d.Format("Jan 2")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// resolveTaskID accepts a full or abbreviated task id.
func resolveTaskID(a *app, partial string) (string, error) {
	if _, err := a.assistant.GetTask(partial); err == nil {
		return partial, nil
	}

	list, err := a.assistant.ListTasks(tasks.ListFilter{})
	if err != nil {
		return "", err
	}
	var matches []string
	for _, t := range list {
		if strings.HasPrefix(t.ID, partial) {
			matches = append(matches, t.ID)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return "", fmt.Errorf("no task matches %q", partial)
	default:
		return "", fmt.Errorf("task id %q is ambiguous (%d matches)", partial, len(matches))
	}
}
