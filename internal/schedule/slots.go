// Package schedule turns provider availability into bookable slots.
//
// Everything here is pure: callers fetch availability and the current time
// and pass them in.
package schedule

import "glowbook/internal/models"

// GenerateSlots walks every interval in input order and emits consecutive
// 60-minute slots starting at the interval start. A trailing remainder shorter
// than a slot is dropped. Output is not re-sorted.
func GenerateSlots(intervals []models.Interval) []models.Slot {
	var slots []models.Slot
	for _, iv := range intervals {
		for t := iv.Start; t+models.SlotMinutes <= iv.End; t += models.SlotMinutes {
			slots = append(slots, models.SlotAt(t))
		}
	}
	return slots
}

// ContainsSlot reports whether want is one of slots.
func ContainsSlot(slots []models.Slot, want models.Slot) bool {
	for _, s := range slots {
		if s == want {
			return true
		}
	}
	return false
}

// FreeSlots drops slots whose start is already taken.
func FreeSlots(slots []models.Slot, taken []models.TimeOfDay) []models.Slot {
	if len(taken) == 0 {
		return slots
	}
	busy := make(map[models.TimeOfDay]struct{}, len(taken))
	for _, t := range taken {
		busy[t] = struct{}{}
	}
	free := make([]models.Slot, 0, len(slots))
	for _, s := range slots {
		if _, ok := busy[s.Start]; ok {
			continue
		}
		free = append(free, s)
	}
	return free
}
