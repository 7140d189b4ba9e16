package llm

import (
	"context"
	"fmt"
)

// StaticDecoder returns canned continuations in rotation. It backs offline
// runs and tests where no model endpoint is available.
type StaticDecoder struct {
	Completions []string
	next        int
}

// BatchDecode returns n continuations, each prompt + the next canned text.
func (d *StaticDecoder) BatchDecode(ctx context.Context, prompt string, n int) ([]string, error) {
	if len(d.Completions) == 0 {
		return nil, fmt.Errorf("static decoder has no completions")
	}
	out := make([]string, n)
	for i := range out {
		out[i] = prompt + d.Completions[d.next%len(d.Completions)]
		d.next++
	}
	return out, nil
}

// DemoCompletions are small layouts used by the offline decoder.
var DemoCompletions = []string{
	" bedroom1: (0,0)(80,0)(80,60)(0,60), bathroom1: (80,0)(120,0)(120,40)(80,40), kitchen: (0,60)(120,60)(120,110)(0,110)",
	" bedroom1: (0,0)(70,0)(70,70)(0,70), bedroom2: (70,0)(140,0)(140,70)(70,70), bathroom1: (0,70)(40,70)(40,110)(0,110), living_room: (40,70)(140,70)(140,110)(40,110)",
	" bedroom1: (0,0)(60,0)(60,60)(0,60), bedroom2: (60,0)(120,0)(120,60)(60,60), bedroom3: (120,0)(180,0)(180,60)(120,60), bathroom1: (0,60)(50,60)(50,100)(0,100), bathroom2: (50,60)(100,60)(100,100)(50,100), kitchen: (100,60)(180,60)(180,100)(100,100)",
	" bedroom1: (0,0)(50,0)(50,50)(0,50), bedroom2: (50,0)(100,0)(100,50)(50,50), bathroom1: (0,50)(40,50)(40,90)(0,90), corridor: (40,50)(100,50)(100,70)(40,70)",
}
