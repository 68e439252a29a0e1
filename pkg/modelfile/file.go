package modelfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Format of a model file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the format from a file extension; anything but .json is YAML.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// File is the decoded form of a model file.
type File struct {
	Name        string         `mapstructure:"name" json:"name"`
	Description string         `mapstructure:"description" json:"description,omitempty"`
	Criterion   string         `mapstructure:"criterion" json:"criterion,omitempty" validate:"omitempty,oneof=total_cost average_cost"`
	Variables   []Variable     `mapstructure:"variables" json:"variables" validate:"required,min=1,dive"`
	Actions     []ActionDef    `mapstructure:"actions" json:"actions" validate:"required,min=1,dive"`
	Initial     Assignment     `mapstructure:"initial" json:"initial" validate:"required"`
	Goal        Assignment     `mapstructure:"goal" json:"goal,omitempty"`
	Transitions []PSO          `mapstructure:"transitions" json:"transitions" validate:"required,min=1,dive"`
	QFunctions  []QFunctionDef `mapstructure:"qfunctions" json:"qfunctions" validate:"required,min=1,dive"`
	Cost        Cost           `mapstructure:"cost" json:"cost"`
}

// Assignment maps variable names to values.
type Assignment map[string]any

// Variable declares a state variable and its domain.
type Variable struct {
	Name   string `mapstructure:"name" json:"name" validate:"required"`
	Values []any  `mapstructure:"values" json:"values" validate:"required,min=1"`
}

// ActionDef declares an atomic definition through the parameter lists of its
// actions, or a composite through the names of its constituents.
type ActionDef struct {
	Name      string   `mapstructure:"name" json:"name" validate:"required"`
	Actions   [][]any  `mapstructure:"actions" json:"actions,omitempty" validate:"required_without=Composite"`
	Composite []string `mapstructure:"composite" json:"composite,omitempty" validate:"excluded_with=Actions"`
}

// PSO describes the transition model of one action definition.
type PSO struct {
	Definition    string         `mapstructure:"definition" json:"definition" validate:"required"`
	Preconditions []Precondition `mapstructure:"preconditions" json:"preconditions,omitempty" validate:"dive"`
	Effects       []EffectTable  `mapstructure:"effects" json:"effects" validate:"required,min=1,dive"`
}

// Precondition restricts the values of Var under which Action is applicable.
type Precondition struct {
	Action string `mapstructure:"action" json:"action" validate:"required"`
	Var    string `mapstructure:"var" json:"var" validate:"required"`
	Values []any  `mapstructure:"values" json:"values" validate:"required,min=1"`
}

// EffectTable is a tabular action description for one effect class.
type EffectTable struct {
	Discriminant []string    `mapstructure:"discriminant" json:"discriminant" validate:"required,min=1"`
	Effect       []string    `mapstructure:"effect" json:"effect" validate:"required,min=1"`
	Table        []EffectRow `mapstructure:"table" json:"table" validate:"required,min=1,dive"`
}

// EffectRow gives the outcome distribution of Action from discriminant When.
type EffectRow struct {
	Action   string     `mapstructure:"action" json:"action" validate:"required"`
	When     Assignment `mapstructure:"when" json:"when" validate:"required"`
	Outcomes []Outcome  `mapstructure:"outcomes" json:"outcomes" validate:"required,min=1,dive"`
}

// Outcome is one effect with its probability.
type Outcome struct {
	Set         Assignment `mapstructure:"set" json:"set" validate:"required"`
	Probability float64    `mapstructure:"probability" json:"probability" validate:"gte=0,lte=1"`
}

// Match selects transitions. Empty fields match everything; Action matches
// an action name or ID.
type Match struct {
	Action string     `mapstructure:"action" json:"action,omitempty"`
	Src    Assignment `mapstructure:"src" json:"src,omitempty"`
	Dest   Assignment `mapstructure:"dest" json:"dest,omitempty"`
}

// ValueRule assigns Value to the transitions it matches. Rules are tried in order.
type ValueRule struct {
	Match `mapstructure:",squash"`
	Value float64 `mapstructure:"value" json:"value"`
}

// EventDef is an event of an event-based QFunction, worth Value.
type EventDef struct {
	Match `mapstructure:",squash"`
	Name  string  `mapstructure:"name" json:"name" validate:"required"`
	Value float64 `mapstructure:"value" json:"value"`
}

// QFunctionDef declares a QFunction measured on Definition with the source
// and destination variables Src and Dest. Exactly one of Values, Events and
// Count is set.
type QFunctionDef struct {
	Name       string      `mapstructure:"name" json:"name" validate:"required"`
	Definition string      `mapstructure:"definition" json:"definition" validate:"required"`
	Src        []string    `mapstructure:"src" json:"src,omitempty"`
	Dest       []string    `mapstructure:"dest" json:"dest,omitempty"`
	Values     []ValueRule `mapstructure:"values" json:"values,omitempty"`
	Events     []EventDef  `mapstructure:"events" json:"events,omitempty" validate:"dive"`
	Count      *Match      `mapstructure:"count" json:"count,omitempty"`
}

// Cost is the objective: one linear attribute cost per QFunction.
type Cost struct {
	Name  string `mapstructure:"name" json:"name,omitempty"`
	Terms []Term `mapstructure:"terms" json:"terms" validate:"required,min=1,dive"`
}

// Term is the scaled attribute cost Intercept + Slope·v of one QFunction.
type Term struct {
	QFunction string  `mapstructure:"qfunction" json:"qfunction" validate:"required"`
	Intercept float64 `mapstructure:"intercept" json:"intercept"`
	Slope     float64 `mapstructure:"slope" json:"slope" validate:"gt=0"`
	Scaling   float64 `mapstructure:"scaling" json:"scaling" validate:"gt=0,lte=1"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report mapstructure keys, as written in the file.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Load reads and parses a model file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}
	return Parse(data, FormatOf(path))
}

// Parse decodes and validates a model file.
func Parse(data []byte, format Format) (*File, error) {
	raw, err := unmarshal(data, format, "model")
	if err != nil {
		return nil, err
	}

	var f File
	if err := decode(raw, &f); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func unmarshal(data []byte, format Format, what string) (map[string]any, error) {
	var raw map[string]any
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", what, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", what, err)
		}
	default:
		return nil, fmt.Errorf("unknown %s format %q", what, format)
	}
	if raw == nil {
		return nil, &AggregateError{Errors: []error{&ValidationError{Reason: "empty " + what + " file"}}}
	}
	return raw, nil
}

func decode(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		var merr *mapstructure.Error
		if !errors.As(err, &merr) {
			return err
		}
		var c collector
		for _, msg := range merr.Errors {
			c.add("", msg, nil)
		}
		return c.err()
	}
	return nil
}

// Validate checks the structural rules of the file. Cross references are
// resolved by Build.
func (f *File) Validate() error {
	var c collector
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			c.add(fieldPath(fe.Namespace()), describe(fe), fe.Value())
		}
	}
	for i, q := range f.QFunctions {
		kinds := 0
		if len(q.Values) > 0 {
			kinds++
		}
		if len(q.Events) > 0 {
			kinds++
		}
		if q.Count != nil {
			kinds++
		}
		if kinds != 1 {
			c.add(fmt.Sprintf("qfunctions[%d]", i), "needs exactly one of values, events or count", nil)
		}
	}
	return c.err()
}

// fieldPath drops the root type from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return "is required without " + strings.ToLower(fe.Param())
	case "excluded_with":
		return "cannot be combined with " + strings.ToLower(fe.Param())
	case "min":
		return "needs at least " + fe.Param() + " element(s)"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	}
	return "failed " + fe.Tag()
}
