package models

import (
	"errors"
	"fmt"
)

// SlotMinutes is the fixed length of a bookable slot.
const SlotMinutes = 60

var ErrInvalidInterval = errors.New("interval start must be before end")

// Interval is an open window of a provider's day, [Start, End).
type Interval struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

func NewInterval(start, end string) (Interval, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return Interval{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return Interval{}, err
	}
	iv := Interval{Start: s, End: e}
	return iv, iv.Validate()
}

// Validate enforces Start < End within one day.
func (i Interval) Validate() error {
	if !i.Start.Valid() || !i.End.Valid() {
		return fmt.Errorf("interval %s out of day range", i)
	}
	if i.Start >= i.End {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, i)
	}
	return nil
}

// Minutes returns the interval length.
func (i Interval) Minutes() int {
	return int(i.End - i.Start)
}

func (i Interval) String() string {
	return i.Start.String() + "-" + i.End.String()
}

// Slot is a fixed 60-minute bookable window derived from an Interval.
type Slot struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}

// SlotAt returns the slot starting at t.
func SlotAt(t TimeOfDay) Slot {
	return Slot{Start: t, End: t + SlotMinutes}
}

func (s Slot) String() string {
	return s.Start.String() + "-" + s.End.String()
}

