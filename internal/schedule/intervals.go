package schedule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"glowbook/internal/models"
)

var ErrEmptyEntry = errors.New("empty availability entry")

// ParseIntervals decodes a JSON array of availability entries in any of the
// accepted shapes and returns them normalized:
//
//	{"start":"09:00","end":"12:00"}
//	"09:00 - 12:00" or "09:00-12:00"
//	"09:00"                          one slot starting at 09:00
func ParseIntervals(raw json.RawMessage) ([]models.Interval, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("availability must be a list: %w", err)
	}

	intervals := make([]models.Interval, 0, len(entries))
	for i, entry := range entries {
		iv, err := parseEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		intervals = append(intervals, iv)
	}
	return Normalize(intervals)
}

// ParseAvailabilityMap decodes {"YYYY-MM-DD": [entries...]} into canonical form.
func ParseAvailabilityMap(raw json.RawMessage) (map[string][]models.Interval, error) {
	var byDate map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byDate); err != nil {
		return nil, fmt.Errorf("availability must be an object keyed by date: %w", err)
	}

	out := make(map[string][]models.Interval, len(byDate))
	for date, entries := range byDate {
		if _, err := ParseDate(date); err != nil {
			return nil, err
		}
		intervals, err := ParseIntervals(entries)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", date, err)
		}
		out[date] = intervals
	}
	return out, nil
}

func parseEntry(entry json.RawMessage) (models.Interval, error) {
	entry = bytes.TrimSpace(entry)
	if len(entry) == 0 {
		return models.Interval{}, ErrEmptyEntry
	}

	switch entry[0] {
	case '{':
		var obj struct {
			Start string `json:"start"`
			End   string `json:"end"`
		}
		if err := json.Unmarshal(entry, &obj); err != nil {
			return models.Interval{}, err
		}
		if obj.Start == "" || obj.End == "" {
			return models.Interval{}, errors.New("start and end are required")
		}
		return models.NewInterval(obj.Start, obj.End)
	case '"':
		var s string
		if err := json.Unmarshal(entry, &s); err != nil {
			return models.Interval{}, err
		}
		return ParseIntervalString(s)
	default:
		return models.Interval{}, fmt.Errorf("unsupported entry %s", string(entry))
	}
}

// ParseIntervalString accepts "HH:MM - HH:MM", "HH:MM-HH:MM" or a single "HH:MM".
func ParseIntervalString(s string) (models.Interval, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Interval{}, ErrEmptyEntry
	}

	if start, end, ok := strings.Cut(s, "-"); ok {
		return models.NewInterval(start, end)
	}

	start, err := models.ParseTimeOfDay(s)
	if err != nil {
		return models.Interval{}, err
	}
	iv := models.Interval{Start: start, End: start + models.SlotMinutes}
	return iv, iv.Validate()
}

// Normalize validates every interval, sorts by start and merges intervals
// that overlap. Touching intervals stay separate so each keeps its own slot grid.
func Normalize(intervals []models.Interval) ([]models.Interval, error) {
	if len(intervals) == 0 {
		return nil, nil
	}

	sorted := make([]models.Interval, len(intervals))
	copy(sorted, intervals)
	for _, iv := range sorted {
		if err := iv.Validate(); err != nil {
			return nil, err
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start == sorted[j].Start {
			return sorted[i].End < sorted[j].End
		}
		return sorted[i].Start < sorted[j].Start
	})

	merged := []models.Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if iv.Start < last.End {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged, nil
}
