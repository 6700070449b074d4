package model

import (
	"fmt"
	"strconv"
	"strings"
)

type Day uint8

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

const (
	DaysPerWeek         = 6
	DefaultSlotsPerDay  = 6
	DefaultDivisionSize = 30
)

var dayNames = [DaysPerWeek]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Days lists the week in schedule order
func Days() []Day {
	return []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}
}

func (day Day) String() string {
	if int(day) < len(dayNames) {
		return dayNames[day]
	}
	return fmt.Sprintf("Day(%d)", uint8(day))
}

func (day Day) Valid() bool {
	return day < DaysPerWeek
}

func (day Day) MarshalText() ([]byte, error) {
	if !day.Valid() {
		return nil, fmt.Errorf("invalid day %d", uint8(day))
	}
	return []byte(day.String()), nil
}

func (day *Day) UnmarshalText(text []byte) error {
	parsed, err := ParseDay(string(text))
	if err != nil {
		return err
	}
	*day = parsed
	return nil
}

// ParseDay accepts a day name (case insensitive) or its zero-based position in the week
func ParseDay(value string) (Day, error) {
	trimmed := strings.TrimSpace(value)
	for i, name := range dayNames {
		if strings.EqualFold(name, trimmed) {
			return Day(i), nil
		}
	}
	if position, err := strconv.Atoi(trimmed); err == nil && position >= 0 && position < DaysPerWeek {
		return Day(position), nil
	}
	return 0, fmt.Errorf("unknown day %q", value)
}

// Grid is the fixed weekly time grid of a run: DaysPerWeek days times SlotsPerDay slots
type Grid struct {
	SlotsPerDay int
}

func (grid Grid) Cells() int {
	return DaysPerWeek * grid.SlotsPerDay
}

// Cell returns the position of (day, slot) in schedule order, where slot is zero-based
func (grid Grid) Cell(day Day, slot int) int {
	return int(day)*grid.SlotsPerDay + slot
}

func (grid Grid) DaySlot(cell int) (Day, int) {
	return Day(cell / grid.SlotsPerDay), cell % grid.SlotsPerDay
}

func (grid Grid) Contains(day Day, slot int) bool {
	return day.Valid() && slot >= 0 && slot < grid.SlotsPerDay
}

// SlotLabel renders a zero-based slot as its one-based label ("1".."K")
func SlotLabel(slot int) string {
	return strconv.Itoa(slot + 1)
}

// ParseSlotLabel is the inverse of SlotLabel
func ParseSlotLabel(label string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(label))
	if err != nil || value < 1 {
		return 0, fmt.Errorf("invalid slot label %q", label)
	}
	return value - 1, nil
}
