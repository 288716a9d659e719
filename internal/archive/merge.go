package archive

import "fmt"

// ImportMode selects how an archived task list merges into a live one.
type ImportMode string

const (
	// ModeAppend concatenates archived tasks after the current list.
	// Duplicate IDs across the two inputs are allowed to coexist:
	// archived tasks are historical copies, not live-synced entries.
	ModeAppend ImportMode = "append"
	// ModeReplace discards the current list entirely.
	ModeReplace ImportMode = "replace"
)

// ValidImportModes returns all valid import modes.
func ValidImportModes() []ImportMode {
	return []ImportMode{ModeAppend, ModeReplace}
}

// IsValidImportMode returns true if m is a valid import mode.
func IsValidImportMode(m ImportMode) bool {
	return m == ModeAppend || m == ModeReplace
}

// MergeImport merges archived tasks into the current list under the
// given mode. The result is always a fresh copy down to the timestamp
// pointers: mutating it never affects either input.
func MergeImport(current, archived []Task, mode ImportMode) ([]Task, error) {
	switch mode {
	case ModeAppend:
		merged := make([]Task, 0, len(current)+len(archived))
		for _, t := range current {
			merged = append(merged, cloneTask(t))
		}
		for _, t := range archived {
			merged = append(merged, cloneTask(t))
		}
		return merged, nil
	case ModeReplace:
		merged := make([]Task, 0, len(archived))
		for _, t := range archived {
			merged = append(merged, cloneTask(t))
		}
		return merged, nil
	default:
		return nil, fmt.Errorf("invalid import mode: %q (valid: append, replace)", mode)
	}
}

func cloneTask(t Task) Task {
	if t.CreatedAt != nil {
		created := *t.CreatedAt
		t.CreatedAt = &created
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		t.CompletedAt = &completed
	}
	return t
}
