// Package contextdiff compares two target context versions for the
// diff detail level: a line diff of the user context and another of the
// agent context.
package contextdiff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/probegate/probegate/pkg/models"
)

// Diff is the comparison of two context versions.
type Diff struct {
	FromVersion      int    `json:"from_version"`
	ToVersion        int    `json:"to_version"`
	UserContextDiff  string `json:"user_context_diff,omitempty"`
	AgentContextDiff string `json:"agent_context_diff,omitempty"`
	ChangeSummary    string `json:"change_summary,omitempty"`
}

// Compare diffs two versions field by field. Identical fields produce
// no diff text. The newer version's change summary rides along so the
// caller can show what the author said changed.
func Compare(from, to *models.TargetContext) Diff {
	d := Diff{
		FromVersion:   from.Version,
		ToVersion:     to.Version,
		ChangeSummary: to.ChangeSummary,
	}
	if from.UserContext != to.UserContext {
		d.UserContextDiff = Lines(from.UserContext, to.UserContext)
	}
	if from.AgentContext != to.AgentContext {
		d.AgentContextDiff = Lines(from.AgentContext, to.AgentContext)
	}
	return d
}

// Lines produces a unified-style line diff of two texts. Unchanged runs
// keep a leading space; additions get "+", removals "-".
func Lines(old, new string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(old, new)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range splitLines(d.Text) {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
