package debate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileExporter appends a plain-text record of every finished debate to Path.
type FileExporter struct {
	Path string

	mu sync.Mutex
}

func (e *FileExporter) Record(_ context.Context, s Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(e.Path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	fileExists := false
	if _, err := os.Stat(e.Path); err == nil {
		fileExists = true
	}
	file, err := os.OpenFile(e.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	if fileExists {
		sb.WriteString("\n")
	}
	writeTranscript(&sb, s)
	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}

func writeTranscript(sb *strings.Builder, s Snapshot) {
	fmt.Fprintf(sb, "Debate %s\n", s.ID)
	fmt.Fprintf(sb, "Topic: %s\n", s.Topic)
	fmt.Fprintf(sb, "Started: %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")

	sb.WriteString("Players:\n")
	for _, p := range s.Players {
		fmt.Fprintf(sb, "- %s (%s)\n", p.Username, strings.ToUpper(string(p.Side)))
	}
	sb.WriteString("\n")

	lastPhase := -1
	for _, m := range s.Transcript {
		if m.PhaseIndex != lastPhase {
			if phase, ok := DefaultScript.Phase(m.PhaseIndex); ok {
				fmt.Fprintf(sb, "Round %d: %s\n", m.PhaseIndex+1, phase.Description)
				sb.WriteString(strings.Repeat("-", 40) + "\n")
			}
			lastPhase = m.PhaseIndex
		}
		fmt.Fprintf(sb, "- %s: \"%s\"\n", m.Author, m.Text)
	}
	sb.WriteString("\n")

	if res := s.Result; res != nil {
		fmt.Fprintf(sb, "Result: %s\n", res.Reason)
		if p, ok := s.Player(res.WinnerUserID); ok {
			fmt.Fprintf(sb, "Winner: %s\n", p.Username)
		}
		if res.Scores != nil {
			fmt.Fprintf(sb, "Scores: FOR %d, AGAINST %d\n", res.Scores.For, res.Scores.Against)
		}
		if res.Feedback != nil {
			fmt.Fprintf(sb, "Feedback (FOR): %s\n", res.Feedback.For)
			fmt.Fprintf(sb, "Feedback (AGAINST): %s\n", res.Feedback.Against)
		}
	}
	if s.FinishedAt != nil {
		fmt.Fprintf(sb, "Debate ended at %s\n", s.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	sb.WriteString(strings.Repeat("=", 50) + "\n")
}
