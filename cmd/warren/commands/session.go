package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/session"
	"github.com/dyluth/warren/internal/timespec"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage exploration sessions",
}

var sessionNewCmd = &cobra.Command{
	Use:   "new [session-id]",
	Short: "Create a session",
	Long: `Create a session with the configured defaults: one blank step,
the viewport at its starting position, and nothing selected.

A UUID is generated when no id is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessionNew,
}

var sessionListCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List sessions",
	Long: `List sessions, optionally filtered by id prefix and last update time.

--since and --until take a duration counted back from now ("2h") or an
RFC3339 timestamp.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSessionList,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's state",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var listSince, listUntil string

func init() {
	sessionListCmd.Flags().StringVar(&listSince, "since", "", "Only sessions updated after this time")
	sessionListCmd.Flags().StringVar(&listUntil, "until", "", "Only sessions updated before this time")
	sessionCmd.AddCommand(sessionNewCmd, sessionListCmd, sessionShowCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionNew(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	id := session.NewSessionID()
	if len(args) == 1 {
		id = args[0]
	}

	created := false
	err = e.svc.Do(ctx, id, func(s *session.Session) error {
		created = s.Created()
		return nil
	})
	if err != nil {
		return sessionError(id, err)
	}
	if !created {
		printer.Warning("session '%s' already exists\n", id)
		return nil
	}
	printer.Success("Created session %s\n", id)
	return nil
}

func runSessionList(cmd *cobra.Command, args []string) error {
	window, err := timespec.ParseRange(listSince, listUntil, time.Now())
	if err != nil {
		return printer.Error("invalid time range", err.Error(), nil)
	}

	ctx := context.Background()
	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}
	ids, err := e.client.ScanSessions(ctx, prefix)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		printer.Info("No sessions found in namespace '%s'\n", e.cfg.Redis.Namespace)
		return nil
	}

	printer.Printf("%-38s %-6s %-8s %s\n", "SESSION", "STEPS", "ELITES", "UPDATED")
	for _, id := range ids {
		rec, err := e.svc.Get(ctx, id)
		if err != nil {
			printer.Warning("skipping %s: %v\n", id, err)
			continue
		}
		if !window.Contains(rec.UpdatedAtMs) {
			continue
		}
		occupied := 0
		if rec.Population != nil && rec.Population.Genomes != nil {
			occupied = rec.Population.Genomes.Occupied()
		}
		printer.Printf("%-38s %-6d %-8d %s\n", id, len(rec.Steps), occupied, formatAge(rec.UpdatedAtMs))
	}
	return nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	id, err := e.resolveSession(ctx, args[0], false)
	if err != nil {
		return err
	}
	rec, err := e.svc.Get(ctx, id)
	if err != nil {
		return sessionError(id, err)
	}

	selected := "latest"
	if rec.SelectedStep != nil {
		selected = fmt.Sprintf("%d", *rec.SelectedStep)
	}
	printer.Printf("Session:    %s\n", rec.SessionID)
	printer.Printf("Steps:      %d (showing %s)\n", len(rec.Steps), selected)
	printer.Printf("Batch size: %d\n", rec.BatchSize)
	printer.Printf("Viewport:   x_start=%d y_start=%.2f selected=%d\n", rec.Viewport.XStart, rec.Viewport.YStart, rec.Viewport.LastClicked)
	if rec.Population != nil && rec.Population.Genomes != nil {
		printer.Printf("Elites:     %d\n", rec.Population.Genomes.Occupied())
		printer.Printf("Recycled:   %d\n", len(rec.Population.Recycled))
	} else {
		printer.Printf("Elites:     0 (no run yet)\n")
	}
	printer.Printf("Updated:    %s\n", formatAge(rec.UpdatedAtMs))
	return nil
}

// formatAge renders a millisecond timestamp as "2m ago".
func formatAge(ms int64) string {
	if ms == 0 {
		return "-"
	}
	diff := time.Since(time.UnixMilli(ms))
	switch {
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
}
