package model

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorKind string

const (
	KindInvalidInput       ErrorKind = "InvalidInput"
	KindTeacherConflict    ErrorKind = "TeacherConflict"
	KindRoomConflict       ErrorKind = "RoomConflict"
	KindDivisionSlotTaken  ErrorKind = "DivisionSlotTaken"
	KindIneligibleTeacher  ErrorKind = "IneligibleTeacher"
	KindCapacityExceeded   ErrorKind = "CapacityExceeded"
	KindFrequencyExceeded  ErrorKind = "FrequencyExceeded"
	KindTeacherUnavailable ErrorKind = "TeacherUnavailable"
	KindDailyLimitExceeded ErrorKind = "DailyLimitExceeded"
	KindNotCommitted       ErrorKind = "NotCommitted"
	KindUnsatisfiable      ErrorKind = "Unsatisfiable"
	KindSearchExhausted    ErrorKind = "SearchExhausted"
)

// Sentinels matched through errors.Is by every error of the corresponding family
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrCommit          = errors.New("commit rejected")
	ErrUnsatisfiable   = errors.New("division is unsatisfiable")
	ErrSearchExhausted = errors.New("search budget exhausted")
	ErrOutOfRange      = errors.New("index out of range")

	errStepBudget = errors.New("step budget exceeded")
)

//** Invalid input

type InputIssue struct {
	Collection string `json:"collection"`
	Id         string `json:"id,omitempty"`
	Field      string `json:"field,omitempty"`
	Message    string `json:"message"`
}

func (issue InputIssue) String() string {
	var builder strings.Builder
	builder.WriteString(issue.Collection)
	if issue.Id != "" {
		fmt.Fprintf(&builder, "[%v]", issue.Id)
	}
	if issue.Field != "" {
		fmt.Fprintf(&builder, ".%v", issue.Field)
	}
	fmt.Fprintf(&builder, ": %v", issue.Message)
	return builder.String()
}

// InvalidInputError lists every problem found while validating a raw input
type InvalidInputError struct {
	Issues []InputIssue
}

func (err *InvalidInputError) Error() string {
	messages := make([]string, 0, len(err.Issues))
	for _, issue := range err.Issues {
		messages = append(messages, issue.String())
	}
	return fmt.Sprintf("invalid input (%d issues): %v", len(err.Issues), strings.Join(messages, "; "))
}

func (err *InvalidInputError) Kind() ErrorKind { return KindInvalidInput }

func (err *InvalidInputError) Is(target error) bool { return target == ErrInvalidInput }

//** Commit

// CommitError is returned by the constraint store when an assignment is rejected; the store is left untouched
type CommitError struct {
	Reason   ErrorKind
	Division string
	Day      Day
	Slot     int
	Subject  string
	Teacher  string
	Room     string
}

func (err *CommitError) Error() string {
	return fmt.Sprintf("%v: division %q at %v slot %v (subject %q, teacher %q, room %q)",
		err.Reason, err.Division, err.Day, SlotLabel(err.Slot), err.Subject, err.Teacher, err.Room)
}

func (err *CommitError) Kind() ErrorKind { return err.Reason }

func (err *CommitError) Is(target error) bool { return target == ErrCommit }

//** Search

// UnsatisfiableError names the subject of a division that could not reach its weekly frequency
// together with the teachers that bottlenecked it
type UnsatisfiableError struct {
	Division        string
	Subject         string
	RemainingNeeded int
	Teachers        []string
}

func (err *UnsatisfiableError) Error() string {
	return fmt.Sprintf("division %q cannot be scheduled: subject %q still needs %d lessons (teachers %v)",
		err.Division, err.Subject, err.RemainingNeeded, err.Teachers)
}

func (err *UnsatisfiableError) Kind() ErrorKind { return KindUnsatisfiable }

func (err *UnsatisfiableError) Is(target error) bool { return target == ErrUnsatisfiable }

type SearchExhaustedError struct {
	Division string
	Steps    uint64
	Cause    error
}

func (err *SearchExhaustedError) Error() string {
	if err.Cause != nil {
		return fmt.Sprintf("search for division %q aborted after %d steps: %v", err.Division, err.Steps, err.Cause)
	}
	return fmt.Sprintf("search for division %q aborted after %d steps", err.Division, err.Steps)
}

func (err *SearchExhaustedError) Kind() ErrorKind { return KindSearchExhausted }

func (err *SearchExhaustedError) Is(target error) bool { return target == ErrSearchExhausted }

func (err *SearchExhaustedError) Unwrap() error { return err.Cause }

// KindOf extracts the ErrorKind of any error raised by this package, or "" for foreign errors
func KindOf(err error) ErrorKind {
	var kinded interface{ Kind() ErrorKind }
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	return ""
}

type unassignableError struct {
}

func (err unassignableError) Error() string {
	return "not all divisions can be assigned a room"
}
