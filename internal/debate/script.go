package debate

import (
	"fmt"
	"time"
)

// Phase is one scripted turn of a debate.
type Phase struct {
	Key          string        `json:"phase"`
	Side         Side          `json:"side"`
	Action       string        `json:"action"`
	Description  string        `json:"description"`
	MessageLimit int           `json:"messageLimit"`
	Duration     time.Duration `json:"-"`
}

// DurationSeconds is the phase length as sent to clients.
func (p Phase) DurationSeconds() int { return int(p.Duration / time.Second) }

// Script is the ordered, read-only list of phases for a debate format.
// It is shared by every room of that format and never mutated.
type Script []Phase

// DefaultScript is the 1-on-1 format: opening, two responses, a counter and
// two single-message rebuttals.
var DefaultScript = Script{
	newPhase(SideFor, "opening", "opening argument", 2),
	newPhase(SideAgainst, "response", "response", 2),
	newPhase(SideAgainst, "counter", "counter-argument", 2),
	newPhase(SideFor, "response", "response", 2),
	newPhase(SideFor, "rebuttal", "rebuttal", 1),
	newPhase(SideAgainst, "final_rebuttal", "final rebuttal", 1),
}

const defaultPhaseDuration = 300 * time.Second

func newPhase(side Side, key, action string, limit int) Phase {
	label := "FOR"
	if side == SideAgainst {
		label = "AGAINST"
	}
	return Phase{
		Key:          string(side) + "_" + key,
		Side:         side,
		Action:       action,
		Description:  fmt.Sprintf("%s side: %s", label, action),
		MessageLimit: limit,
		Duration:     defaultPhaseDuration,
	}
}

func (s Script) Len() int { return len(s) }

// Phase returns the phase at index i.
func (s Script) Phase(i int) (Phase, bool) {
	if i < 0 || i >= len(s) {
		return Phase{}, false
	}
	return s[i], true
}

// Next returns the index following i, or ok=false once the script is
// complete.
func (s Script) Next(i int) (next int, ok bool) {
	if i+1 >= len(s) {
		return len(s), false
	}
	return i + 1, true
}

// WithDuration returns a copy of the script with every phase lasting d.
func (s Script) WithDuration(d time.Duration) Script {
	out := make(Script, len(s))
	copy(out, s)
	for i := range out {
		out[i].Duration = d
	}
	return out
}

func (s Script) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("script has no phases")
	}
	for i, p := range s {
		if !p.Side.Valid() {
			return fmt.Errorf("phase %d: invalid side %q", i, p.Side)
		}
		if p.MessageLimit < 1 {
			return fmt.Errorf("phase %d: message limit must be positive", i)
		}
		if p.Duration <= 0 {
			return fmt.Errorf("phase %d: duration must be positive", i)
		}
	}
	return nil
}
