package diff

import "fmt"

// GroupHunks groups a flat edit script into hunks with a fixed leading and
// trailing context window, merging overlapping windows. Runs of OpEqual
// longer than 2*contextLines are split into separate hunks.
func GroupHunks(ops []Op) []Hunk {
	if len(ops) == 0 {
		return nil
	}

	var hunks []Hunk
	i := 0
	for i < len(ops) {
		if ops[i].Kind == OpEqual {
			i++
			continue
		}

		start := i
		for start > 0 && i-start < contextLines && ops[start-1].Kind == OpEqual {
			start--
		}

		end := i
		for end < len(ops) {
			if ops[end].Kind != OpEqual {
				end++
				continue
			}
			// Count the run of equal lines ahead; if it's short enough to
			// be pure trailing context, absorb it and keep scanning for
			// more changes within the merged window.
			run := end
			for run < len(ops) && ops[run].Kind == OpEqual {
				run++
			}
			if run-end > 2*contextLines || run == len(ops) {
				end += min(contextLines, run-end)
				break
			}
			end = run
		}

		hunks = append(hunks, buildHunk(ops[start:end]))
		i = end
	}

	return hunks
}

func buildHunk(ops []Op) Hunk {
	h := Hunk{Ops: ops}
	for _, op := range ops {
		switch op.Kind {
		case OpEqual:
			if h.OldStart == 0 {
				h.OldStart = op.OldLine
			}
			if h.NewStart == 0 {
				h.NewStart = op.NewLine
			}
			h.OldLines++
			h.NewLines++
		case OpAdd:
			if h.NewStart == 0 {
				h.NewStart = op.NewLine
			}
			h.NewLines++
		case OpRemove:
			if h.OldStart == 0 {
				h.OldStart = op.OldLine
			}
			h.OldLines++
		}
	}
	return h
}

// Header renders the standard unified hunk header.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldLines, h.NewStart, h.NewLines)
}

// AnnotateForLLM renders a hunk the way the review orchestrator's prompt
// expects: every added line carries an explicit "[Line N]" marker with its
// post-state line number, removed lines appear unmarked for context only,
// and equal (context) lines are omitted entirely. This eliminates a class
// of hallucinated line numbers in model output.
func AnnotateForLLM(hunks []Hunk) string {
	var out string
	for _, h := range hunks {
		out += h.Header() + "\n"
		for _, op := range h.Ops {
			switch op.Kind {
			case OpAdd:
				out += fmt.Sprintf("+ [Line %d] %s\n", op.NewLine, op.Text)
			case OpRemove:
				out += "- " + op.Text + "\n"
			}
		}
	}
	return out
}
