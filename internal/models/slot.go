package models

import (
	"fmt"
	"strings"
)

// Period identifies a block of the co-op day.
type Period string

const (
	PeriodFirst     Period = "first"
	PeriodSecond    Period = "second"
	PeriodLunch     Period = "lunch"
	PeriodThird     Period = "third"
	PeriodNonPeriod Period = "non_period"
)

var periodOrder = map[Period]int{
	PeriodFirst:     1,
	PeriodSecond:    2,
	PeriodLunch:     3,
	PeriodThird:     4,
	PeriodNonPeriod: 5,
}

// ParsePeriod normalises raw input into a known period.
func ParsePeriod(raw string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := periodOrder[p]; !ok {
		return "", fmt.Errorf("unknown period %q", raw)
	}
	return p, nil
}

// Valid reports whether p is a known period, including non_period.
func (p Period) Valid() bool {
	_, ok := periodOrder[p]
	return ok
}

// IsClassroomPeriod reports whether a classroom can be booked in p. non_period is never bookable.
func (p Period) IsClassroomPeriod() bool {
	return p.Valid() && p != PeriodNonPeriod
}

// CountsTowardHours reports whether attending a class in p requires a volunteer hour.
func (p Period) CountsTowardHours() bool {
	return p.IsClassroomPeriod() && p != PeriodLunch
}

// Order returns the position of p within the day; unknown periods sort last.
func (p Period) Order() int {
	if o, ok := periodOrder[p]; ok {
		return o
	}
	return len(periodOrder) + 1
}

// SlotKey is the canonical identity of a scheduling assignment.
type SlotKey struct {
	ClassroomID string `json:"classroomId"`
	Period      Period `json:"period"`
}

// NewSlotKey builds a slot key.
func NewSlotKey(classroomID string, period Period) SlotKey {
	return SlotKey{ClassroomID: classroomID, Period: period}
}

// String renders the key as classroomId|period.
func (k SlotKey) String() string {
	return k.ClassroomID + "|" + string(k.Period)
}

// ParseSlotKey is the inverse of SlotKey.String.
func ParseSlotKey(raw string) (SlotKey, error) {
	idx := strings.LastIndex(raw, "|")
	if idx <= 0 || idx == len(raw)-1 {
		return SlotKey{}, fmt.Errorf("malformed slot key %q", raw)
	}
	period, err := ParsePeriod(raw[idx+1:])
	if err != nil {
		return SlotKey{}, err
	}
	return SlotKey{ClassroomID: raw[:idx], Period: period}, nil
}
