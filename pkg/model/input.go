package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

type InputFormat string

const (
	FormatJSON InputFormat = "json"
	FormatYAML InputFormat = "yaml"
)

type RawModelInput struct {
	Teachers  []Teacher  `json:"teachers" yaml:"teachers"`
	Subjects  []Subject  `json:"subjects" yaml:"subjects"`
	Rooms     []Room     `json:"rooms" yaml:"rooms"`
	Divisions []Division `json:"divisions" yaml:"divisions"`
	Options   RawOptions `json:"options,omitempty" yaml:"options,omitempty"`
}

// RawOptions overrides the ModelOptions a run was configured with; zero values keep the configured ones
type RawOptions struct {
	SlotsPerDay         int `json:"slotsPerDay,omitempty" yaml:"slotsPerDay,omitempty"`
	DefaultDivisionSize int `json:"defaultDivisionSize,omitempty" yaml:"defaultDivisionSize,omitempty"`
	MaxDailyLessons     int `json:"maxDailyLessons,omitempty" yaml:"maxDailyLessons,omitempty"`
}

type Teacher struct {
	Id          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Email       string     `json:"email" yaml:"email"`
	Unavailable []TimeCell `json:"unavailable,omitempty" yaml:"unavailable,omitempty"`
}

// TimeCell addresses a (day, slot) of the grid; Slot is one-based like the output labels
type TimeCell struct {
	Day  Day `json:"day" yaml:"day"`
	Slot int `json:"slot" yaml:"slot"`
}

type Subject struct {
	Id               string   `json:"id" yaml:"id"`
	Code             string   `json:"code" yaml:"code"`
	Name             string   `json:"name" yaml:"name"`
	AssignedTeachers []string `json:"assignedTeachers" yaml:"assignedTeachers"`
	Frequency        int      `json:"frequency,omitempty" yaml:"frequency,omitempty"` // Weekly lessons per division, 0 means default
}

type Room struct {
	Id       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Capacity int    `json:"capacity" yaml:"capacity"`
}

type Division struct {
	Id       string   `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Size     int      `json:"size,omitempty" yaml:"size,omitempty"`
	Subjects []string `json:"subjects,omitempty" yaml:"subjects,omitempty"` // Empty means every subject
}

// InputFromFile reads a JSON or YAML input file, picking the format from the extension
func InputFromFile(file string) (RawModelInput, error) {
	bytes, err := os.ReadFile(file)
	if err != nil {
		return RawModelInput{}, fmt.Errorf("cannot read input file: %w", err)
	}
	return InputFromBytes(bytes, FormatFromPath(file))
}

func FormatFromPath(file string) InputFormat {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func InputFromBytes(bytes []byte, format InputFormat) (RawModelInput, error) {
	var inputMap map[string]any
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(bytes, &inputMap)
	case FormatJSON:
		err = json.Unmarshal(bytes, &inputMap)
	default:
		return RawModelInput{}, fmt.Errorf("unsupported input format %q", format)
	}
	if err != nil {
		return RawModelInput{}, fmt.Errorf("cannot parse %v input: %w", format, err)
	}
	return InputFromMap(inputMap)
}

// InputFromMap decodes an already parsed document (e.g. a JSON request body) into a RawModelInput.
// Unknown keys and fractional numbers in integer fields fail with *InvalidInputError
func InputFromMap(inputMap map[string]any) (RawModelInput, error) {
	var rawInput RawModelInput
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.DecodeHookFuncKind(integralNumberHook),
			mapstructure.TextUnmarshallerHookFunc(),
		),
		ErrorUnused: true,
		TagName:     "json",
		Result:      &rawInput,
	})
	if err != nil {
		return RawModelInput{}, err
	}
	if err := decoder.Decode(inputMap); err != nil {
		return RawModelInput{}, decodeError(err)
	}
	return rawInput, nil
}

func integralNumberHook(from, to reflect.Kind, data any) (any, error) {
	if from != reflect.Float64 && from != reflect.Float32 {
		return data, nil
	}
	switch to {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
	default:
		return data, nil
	}
	value := reflect.ValueOf(data).Float()
	if value != math.Trunc(value) {
		return nil, fmt.Errorf("%v is not an integer", value)
	}
	return data, nil
}

func decodeError(err error) error {
	var decodeErr *mapstructure.Error
	if !errors.As(err, &decodeErr) {
		return &InvalidInputError{Issues: []InputIssue{{Collection: "input", Message: err.Error()}}}
	}
	issues := lo.Map(decodeErr.Errors, func(message string, _ int) InputIssue {
		return InputIssue{Collection: "input", Message: message}
	})
	slices.SortFunc(issues, func(a, b InputIssue) int { return strings.Compare(a.Message, b.Message) })
	return &InvalidInputError{Issues: issues}
}
