package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/marcus/dayshift/internal/logging"
)

// GoogleConfig locates credentials and names the target calendar.
type GoogleConfig struct {
	CredentialsFile string // Google API client secrets JSON
	TokenFile       string // cached OAuth token
	CalendarID      string // empty means "primary"
	AuthPort        string // local port for the authorization redirect
}

// DefaultGoogleConfig returns the default Google Calendar configuration.
func DefaultGoogleConfig() GoogleConfig {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".config", "dayshift")
	return GoogleConfig{
		CredentialsFile: filepath.Join(base, "credentials.json"),
		TokenFile:       filepath.Join(base, "token.json"),
		CalendarID:      "primary",
		AuthPort:        "6789",
	}
}

// GoogleCalendar implements Calendar against the Google Calendar API.
type GoogleCalendar struct {
	srv        *gcal.Service
	calendarID string
	logger     *logging.Logger
}

// NewGoogle builds the client from a previously saved token. Run
// Authorize first if no token exists.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (*GoogleCalendar, error) {
	oauthCfg, err := oauthConfig(cfg)
	if err != nil {
		return nil, err
	}

	tok, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("no calendar token at %s, run 'dayshift auth' first: %w", cfg.TokenFile, err)
	}

	srv, err := gcal.NewService(ctx, option.WithHTTPClient(oauthCfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("building calendar service: %w", err)
	}

	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}

	return &GoogleCalendar{
		srv:        srv,
		calendarID: calendarID,
		logger:     logging.Component("calendar"),
	}, nil
}

// Events lists events overlapping the window.
func (g *GoogleCalendar) Events(ctx context.Context, from, to time.Time) ([]Event, error) {
	resp, err := g.srv.Events.List(g.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("listing calendar events: %w", err)
	}

	var out []Event
	for _, item := range resp.Items {
		ev, ok := eventFromAPI(item)
		if !ok {
			continue // all-day events carry no clock times to block around
		}
		out = append(out, ev)
	}
	return out, nil
}

// CreateBlock inserts a reserved slot on the calendar.
func (g *GoogleCalendar) CreateBlock(ctx context.Context, title string, start, end time.Time) (Event, error) {
	created, err := g.srv.Events.Insert(g.calendarID, &gcal.Event{
		Summary: title,
		Start:   &gcal.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:     &gcal.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}).Context(ctx).Do()
	if err != nil {
		return Event{}, fmt.Errorf("creating calendar block: %w", err)
	}

	g.logger.InfoCtx("calendar block created", map[string]any{
		"event_id": created.Id,
		"title":    title,
		"start":    start.Format(time.RFC3339),
	})

	return Event{ID: created.Id, Title: title, Start: start, End: end}, nil
}

// DeleteEvent removes an event.
func (g *GoogleCalendar) DeleteEvent(ctx context.Context, id string) error {
	if err := g.srv.Events.Delete(g.calendarID, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("deleting calendar event %s: %w", id, err)
	}
	return nil
}

func eventFromAPI(item *gcal.Event) (Event, bool) {
	if item.Start == nil || item.End == nil || item.Start.DateTime == "" || item.End.DateTime == "" {
		return Event{}, false
	}
	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return Event{}, false
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return Event{}, false
	}
	return Event{
		ID:       item.Id,
		Title:    item.Summary,
		Location: item.Location,
		Start:    start,
		End:      end,
	}, true
}

// Authorize runs the one-time OAuth flow: it starts a local listener for
// the redirect, prints the consent URL, exchanges the code, and saves
// the token next to the credentials.
func Authorize(ctx context.Context, cfg GoogleConfig) error {
	oauthCfg, err := oauthConfig(cfg)
	if err != nil {
		return err
	}
	port := cfg.AuthPort
	if port == "" {
		port = DefaultGoogleConfig().AuthPort
	}
	oauthCfg.RedirectURL = fmt.Sprintf("http://localhost:%s/oauth2callback", port)

	listener, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("starting auth listener on port %s: %w", port, err)
	}
	defer listener.Close()

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			code := r.URL.Query().Get("code")
			if code == "" {
				http.Error(w, "authorization code missing", http.StatusBadRequest)
				errCh <- fmt.Errorf("authorization code missing from redirect")
				return
			}
			fmt.Fprint(w, "Authorized. You can close this window.")
			codeCh <- code
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	defer server.Shutdown(context.Background())

	authURL := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
	fmt.Printf("Open this URL to authorize calendar access:\n%s\n", authURL)

	select {
	case code := <-codeCh:
		tok, err := oauthCfg.Exchange(ctx, code)
		if err != nil {
			return fmt.Errorf("exchanging authorization code: %w", err)
		}
		return saveToken(cfg.TokenFile, tok)
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("authorization timed out")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func oauthConfig(cfg GoogleConfig) (*oauth2.Config, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file %s: %w", cfg.CredentialsFile, err)
	}
	oauthCfg, err := google.ConfigFromJSON(b, gcal.CalendarEventsScope, gcal.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	return oauthCfg, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token file: %w", err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating token dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}
