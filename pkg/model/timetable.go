package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/samber/lo"
)

type Status string

const (
	StatusComplete      Status = "complete"
	StatusUnsatisfiable Status = "unsatisfiable"
	StatusExhausted     Status = "exhausted"
)

type Lesson struct {
	Subject string `json:"subject" yaml:"subject"`
	Teacher string `json:"teacher" yaml:"teacher"`
	Room    string `json:"room" yaml:"room"`
}

// DaySchedule maps slot labels to lessons; unfilled slots are absent
type DaySchedule map[string]Lesson

// WeeklySchedule holds one DaySchedule per day of the week, indexed by Day
type WeeklySchedule [DaysPerWeek]DaySchedule

func NewWeeklySchedule() WeeklySchedule {
	var schedule WeeklySchedule
	for day := range schedule {
		schedule[day] = DaySchedule{}
	}
	return schedule
}

func (schedule WeeklySchedule) Lesson(day Day, slot int) (Lesson, bool) {
	lesson, ok := schedule[day][SlotLabel(slot)]
	return lesson, ok
}

func (schedule WeeklySchedule) Lessons() int {
	return lo.SumBy(schedule[:], func(day DaySchedule) int { return len(day) })
}

// Slots returns the zero-based slots of the day in ascending order
func (schedule WeeklySchedule) Slots(day Day) []int {
	slots := make([]int, 0, len(schedule[day]))
	for label := range schedule[day] {
		if slot, err := ParseSlotLabel(label); err == nil {
			slots = append(slots, slot)
		}
	}
	slices.Sort(slots)
	return slots
}

// MarshalJSON writes every day in week order and every slot in ascending order
func (schedule WeeklySchedule) MarshalJSON() ([]byte, error) {
	var buffer bytes.Buffer
	buffer.WriteByte('{')
	for _, day := range Days() {
		if day > Monday {
			buffer.WriteByte(',')
		}
		fmt.Fprintf(&buffer, "%q:{", day.String())
		for i, slot := range schedule.Slots(day) {
			if i > 0 {
				buffer.WriteByte(',')
			}
			lesson, err := json.Marshal(schedule[day][SlotLabel(slot)])
			if err != nil {
				return nil, err
			}
			buffer.WriteString(strconv.Quote(SlotLabel(slot)))
			buffer.WriteByte(':')
			buffer.Write(lesson)
		}
		buffer.WriteByte('}')
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

func (schedule *WeeklySchedule) UnmarshalJSON(data []byte) error {
	var days map[string]map[string]Lesson
	if err := json.Unmarshal(data, &days); err != nil {
		return err
	}
	*schedule = NewWeeklySchedule()
	for name, slots := range days {
		day, err := ParseDay(name)
		if err != nil {
			return err
		}
		for label, lesson := range slots {
			if _, err := ParseSlotLabel(label); err != nil {
				return err
			}
			schedule[day][label] = lesson
		}
	}
	return nil
}

type DivisionFailure struct {
	Division        string    `json:"division"`
	Kind            ErrorKind `json:"kind"`
	Diagnostic      string    `json:"diagnostic"`
	Subject         string    `json:"subject,omitempty"`
	RemainingNeeded int       `json:"remainingNeeded,omitempty"`
	Teachers        []string  `json:"teachers,omitempty"`
	Err             error     `json:"-"`
}

func newDivisionFailure(division string, err error) *DivisionFailure {
	failure := &DivisionFailure{
		Division:   division,
		Kind:       KindOf(err),
		Diagnostic: err.Error(),
		Err:        err,
	}
	if unsatisfiable, ok := err.(*UnsatisfiableError); ok {
		failure.Subject = unsatisfiable.Subject
		failure.RemainingNeeded = unsatisfiable.RemainingNeeded
		failure.Teachers = unsatisfiable.Teachers
	}
	return failure
}

type DivisionTimetable struct {
	Division string           `json:"division"`
	Name     string           `json:"name"`
	Status   Status           `json:"status"`
	Schedule WeeklySchedule   `json:"schedule"`
	Failure  *DivisionFailure `json:"error,omitempty"`
}

// Timetable is the result of a run, one entry per division in input order. It encodes as a JSON array
type Timetable struct {
	Divisions []DivisionTimetable
}

func (timetable Timetable) Complete() bool {
	return lo.EveryBy(timetable.Divisions, func(division DivisionTimetable) bool {
		return division.Status == StatusComplete
	})
}

func (timetable Timetable) Failures() []DivisionFailure {
	failures := make([]DivisionFailure, 0)
	for _, division := range timetable.Divisions {
		if division.Failure != nil {
			failures = append(failures, *division.Failure)
		}
	}
	return failures
}

func (timetable Timetable) Division(id string) (DivisionTimetable, bool) {
	return lo.Find(timetable.Divisions, func(division DivisionTimetable) bool {
		return division.Division == id
	})
}

func (timetable Timetable) MarshalJSON() ([]byte, error) {
	if timetable.Divisions == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(timetable.Divisions)
}

func (timetable *Timetable) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &timetable.Divisions)
}
