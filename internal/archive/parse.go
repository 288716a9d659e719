package archive

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// ParseArchive decodes an uploaded archive blob permissively. Missing
// or null fields become zero values, tasks without an id are skipped,
// and an absent stats object is left nil so EffectiveStats derives it.
// Only input that is not JSON at all is an error.
func ParseArchive(data []byte) (*Archive, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("parse archive: invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("parse archive: expected a JSON object")
	}

	a := &Archive{
		ID:             root.Get("id").String(),
		ProjectID:      root.Get("projectId").String(),
		ProjectName:    root.Get("projectName").String(),
		InitialRequest: root.Get("initialRequest").String(),
		Tasks:          []Task{},
	}

	if ts := root.Get("timestamp"); ts.Exists() {
		a.Timestamp = parseTime(ts)
	} else if d := root.Get("date"); d.Exists() {
		// Older exports used "date" for the snapshot time.
		a.Timestamp = parseTime(d)
	}

	root.Get("tasks").ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		id := item.Get("id").String()
		if id == "" {
			return true
		}
		t := Task{
			ID:          id,
			Name:        item.Get("name").String(),
			Description: item.Get("description").String(),
			Status:      item.Get("status").String(),
			Summary:     item.Get("summary").String(),
		}
		if c := item.Get("createdAt"); c.Exists() {
			if ct := parseTime(c); !ct.IsZero() {
				t.CreatedAt = &ct
			}
		}
		if c := item.Get("completedAt"); c.Exists() {
			if ct := parseTime(c); !ct.IsZero() {
				t.CompletedAt = &ct
			}
		}
		a.Tasks = append(a.Tasks, t)
		return true
	})

	if stats := root.Get("stats"); stats.IsObject() {
		a.Stats = &Stats{
			Total:      int(stats.Get("total").Int()),
			Completed:  int(stats.Get("completed").Int()),
			InProgress: int(stats.Get("inProgress").Int()),
			Pending:    int(stats.Get("pending").Int()),
		}
	}

	return a, nil
}

// parseTime accepts RFC3339 strings or epoch milliseconds.
func parseTime(v gjson.Result) time.Time {
	if v.Type == gjson.Number {
		ms := v.Int()
		if ms <= 0 {
			return time.Time{}
		}
		return time.UnixMilli(ms).UTC()
	}
	if ts, err := time.Parse(time.RFC3339, v.String()); err == nil {
		return ts
	}
	return time.Time{}
}
