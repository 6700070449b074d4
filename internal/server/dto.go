package server

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/limaJavier/timetabler/pkg/model"
)

type TimeCellRequest struct {
	Day  string `json:"day" validate:"required"`
	Slot int    `json:"slot" validate:"min=1"`
}

type TeacherRequest struct {
	Id          string            `json:"id" validate:"required"`
	Name        string            `json:"name" validate:"required"`
	Email       string            `json:"email" validate:"omitempty,email"`
	Unavailable []TimeCellRequest `json:"unavailable" validate:"omitempty,dive"`
}

type SubjectRequest struct {
	Id               string   `json:"id" validate:"required"`
	Code             string   `json:"code" validate:"required"`
	Name             string   `json:"name" validate:"required"`
	AssignedTeachers []string `json:"assignedTeachers" validate:"dive,required"`
	Frequency        int      `json:"frequency"`
}

type RoomRequest struct {
	Id       string `json:"id" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Capacity int    `json:"capacity"`
}

type DivisionRequest struct {
	Id       string   `json:"id" validate:"required"`
	Name     string   `json:"name" validate:"required"`
	Size     int      `json:"size"`
	Subjects []string `json:"subjects" validate:"omitempty,dive,required"`
}

type OptionsRequest struct {
	SlotsPerDay         int `json:"slotsPerDay" validate:"omitempty,min=1,max=24"`
	DefaultDivisionSize int `json:"defaultDivisionSize" validate:"omitempty,min=0"`
	MaxDailyLessons     int `json:"maxDailyLessons" validate:"omitempty,min=0"`
}

// GenerateRequest is the body of the generation endpoints. Semantic checks (references, capacities)
// are left to the engine, which reports them all at once
type GenerateRequest struct {
	Teachers  []TeacherRequest  `json:"teachers" validate:"required,dive"`
	Subjects  []SubjectRequest  `json:"subjects" validate:"required,dive"`
	Rooms     []RoomRequest     `json:"rooms" validate:"required,dive"`
	Divisions []DivisionRequest `json:"divisions" validate:"required,min=1,dive"`
	Options   *OptionsRequest   `json:"options" validate:"omitempty"`
	Strategy  string            `json:"strategy" validate:"omitempty,oneof=embedded postponed pure isolated"`
}

// RawInput converts the request; only day names can fail at this point
func (req GenerateRequest) RawInput() (model.RawModelInput, error) {
	var dayErr error
	raw := model.RawModelInput{
		Teachers: lo.Map(req.Teachers, func(teacher TeacherRequest, _ int) model.Teacher {
			cells := make([]model.TimeCell, 0, len(teacher.Unavailable))
			for _, cell := range teacher.Unavailable {
				day, err := model.ParseDay(cell.Day)
				if err != nil {
					dayErr = errors.Join(dayErr, fmt.Errorf("teacher %s: %w", teacher.Id, err))
					continue
				}
				cells = append(cells, model.TimeCell{Day: day, Slot: cell.Slot})
			}
			return model.Teacher{Id: teacher.Id, Name: teacher.Name, Email: teacher.Email, Unavailable: cells}
		}),
		Subjects: lo.Map(req.Subjects, func(subject SubjectRequest, _ int) model.Subject {
			return model.Subject{
				Id:               subject.Id,
				Code:             subject.Code,
				Name:             subject.Name,
				AssignedTeachers: subject.AssignedTeachers,
				Frequency:        subject.Frequency,
			}
		}),
		Rooms: lo.Map(req.Rooms, func(room RoomRequest, _ int) model.Room {
			return model.Room{Id: room.Id, Name: room.Name, Capacity: room.Capacity}
		}),
		Divisions: lo.Map(req.Divisions, func(division DivisionRequest, _ int) model.Division {
			return model.Division{Id: division.Id, Name: division.Name, Size: division.Size, Subjects: division.Subjects}
		}),
	}
	if req.Options != nil {
		raw.Options = model.RawOptions{
			SlotsPerDay:         req.Options.SlotsPerDay,
			DefaultDivisionSize: req.Options.DefaultDivisionSize,
			MaxDailyLessons:     req.Options.MaxDailyLessons,
		}
	}
	return raw, dayErr
}

// GenerateResponse is the data of a successful generation
type GenerateResponse struct {
	RunID      string                  `json:"runId,omitempty"`
	Strategy   model.Strategy          `json:"strategy"`
	Cached     bool                    `json:"cached"`
	Complete   bool                    `json:"complete"`
	Timetables model.Timetable         `json:"timetables"`
	Failures   []model.DivisionFailure `json:"failures"`
}

// RunSummary lists a stored run without its timetable
type RunSummary struct {
	ID          string         `json:"id"`
	Strategy    model.Strategy `json:"strategy"`
	Status      string         `json:"status"`
	InputDigest string         `json:"inputDigest"`
	Divisions   int            `json:"divisions"`
	Failures    int            `json:"failures"`
	DurationMs  int64          `json:"durationMs"`
	CreatedAt   string         `json:"createdAt"`
}

type fieldIssue struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func validationIssues(err error) []fieldIssue {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return nil
	}
	return lo.Map(errs, func(fieldErr validator.FieldError, _ int) fieldIssue {
		return fieldIssue{Field: fieldErr.Namespace(), Rule: fieldErr.Tag(), Param: fieldErr.Param()}
	})
}
