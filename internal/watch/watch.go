// Package watch streams a session's published events to a terminal.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/warren/pkg/store"
)

// OutputFormat selects how events are written.
type OutputFormat string

const (
	// OutputFormatDefault is one human-readable line per event.
	OutputFormatDefault OutputFormat = "default"
	// OutputFormatJSON is line-delimited JSON.
	OutputFormatJSON OutputFormat = "json"
)

// Subscriber is the part of the store client watch needs.
type Subscriber interface {
	SubscribeEvents(ctx context.Context, sessionID string) (*store.EventSubscription, error)
}

// Options tunes StreamEvents.
type Options struct {
	Format OutputFormat
	// Until stops the stream after the first event of this type.
	Until string
	// Ready, when set, is called once the subscription is live.
	Ready func()
}

// StreamEvents writes sessionID's events to w until ctx ends or an Until
// event arrives. Undecodable events are reported inline and skipped.
func StreamEvents(ctx context.Context, sub Subscriber, sessionID string, opts Options, w io.Writer) error {
	if opts.Format == "" {
		opts.Format = OutputFormatDefault
	}
	if opts.Format != OutputFormatDefault && opts.Format != OutputFormatJSON {
		return fmt.Errorf("unknown output format: %s", opts.Format)
	}

	subscription, err := sub.SubscribeEvents(ctx, sessionID)
	if err != nil {
		return err
	}
	defer subscription.Close()

	if opts.Ready != nil {
		opts.Ready()
	}

	events := subscription.Events()
	errs := subscription.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if opts.Format == OutputFormatDefault {
				fmt.Fprintf(w, "⚠️  %v\n", err)
			}

		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeEvent(w, event, opts.Format); err != nil {
				return err
			}
			if opts.Until != "" && event.Type == opts.Until {
				return nil
			}
		}
	}
}

func writeEvent(w io.Writer, e *store.Event, format OutputFormat) error {
	if format == OutputFormatJSON {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}
	ts := time.UnixMilli(e.TimestampMs).Format("15:04:05")
	_, err := fmt.Fprintf(w, "[%s] %s\n", ts, FormatEvent(e))
	return err
}

// FormatEvent renders an event as a single line without a timestamp.
func FormatEvent(e *store.Event) string {
	d := e.Data
	switch e.Type {
	case "run_started":
		return fmt.Sprintf("🚀 Run started: init=%v mutation=%v batch=%v", d["init_steps"], d["mutation_steps"], d["batch_size"])
	case "iteration_completed":
		line := fmt.Sprintf("🔁 Iteration %v (%v): %v candidates, %v failed", d["iteration"], d["phase"], d["candidates"], d["failed"])
		if seeded, ok := d["seeded"].(bool); ok && seeded {
			line += ", seeded"
		}
		if msg, ok := d["insert_error"]; ok {
			line += fmt.Sprintf(" (insert error: %v)", msg)
		}
		return line
	case "generation_failed":
		return fmt.Sprintf("⚠️  Generation failed at iteration %v: %v", d["iteration"], d["error"])
	case "run_completed":
		icon := "✅"
		if d["result"] != "completed" {
			icon = "⛔"
		}
		line := fmt.Sprintf("%s Run %v: steps=%v best=%s", icon, d["result"], d["steps"], formatFitness(d["best_fitness"]))
		if msg, ok := d["error"]; ok {
			line += fmt.Sprintf(" error=%v", msg)
		}
		return line
	case "checkpoint_saved":
		return "💾 Checkpoint saved"
	case "checkpoint_loaded":
		return "📂 Checkpoint loaded"
	default:
		return fmt.Sprintf("• %s %v", e.Type, d)
	}
}

func formatFitness(v interface{}) string {
	if f, ok := v.(float64); ok {
		return fmt.Sprintf("%.4f", f)
	}
	return "-"
}
