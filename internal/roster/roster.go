// Package roster is a file-backed unit directory and role oracle.
// It lets the CLI and MCP server run without an external identity service.
package roster

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/huangsam/moze/internal/contract"
	"github.com/huangsam/moze/schema"
	"github.com/spf13/viper"
)

// ErrUnknownPerson is returned when a caller is not listed in the roster.
var ErrUnknownPerson = errors.New("person not in roster")

// Person is one identity of the roster.
type Person struct {
	ID    string      `mapstructure:"id" validate:"required"`
	Name  string      `mapstructure:"name"`
	Role  schema.Role `mapstructure:"role" validate:"required"`
	Admin bool        `mapstructure:"admin"`
}

// UnitEntry is one unit of the roster with its assigned evaluators.
type UnitEntry struct {
	ID         string   `mapstructure:"id" validate:"required"`
	Name       string   `mapstructure:"name"`
	Evaluators []string `mapstructure:"evaluators"`
}

// File is the on-disk layout of a roster.
type File struct {
	People []Person    `mapstructure:"people" validate:"unique=ID,dive"`
	Units  []UnitEntry `mapstructure:"units" validate:"unique=ID,dive"`
}

// Roster answers directory and role questions from an in-memory copy of a File.
type Roster struct {
	people   map[string]Person
	units    []schema.Unit
	assigned map[string]map[string]bool // unit ID -> evaluator IDs
}

var (
	_ contract.UnitDirectory = &Roster{} // Compile-time check
	_ contract.RoleOracle    = &Roster{} // Compile-time check
)

// New validates the roster file and indexes it.
func New(file File) (*Roster, error) {
	if err := validator.New().Struct(file); err != nil {
		return nil, fmt.Errorf("invalid roster: %w", err)
	}

	r := &Roster{
		people:   make(map[string]Person, len(file.People)),
		assigned: make(map[string]map[string]bool, len(file.Units)),
	}
	for _, p := range file.People {
		r.people[p.ID] = p
	}
	for _, u := range file.Units {
		evaluators := make(map[string]bool, len(u.Evaluators))
		for _, id := range u.Evaluators {
			if _, ok := r.people[id]; !ok {
				return nil, fmt.Errorf("invalid roster: unit %s lists %w: %s", u.ID, ErrUnknownPerson, id)
			}
			evaluators[id] = true
		}
		r.assigned[u.ID] = evaluators
		r.units = append(r.units, schema.Unit{ID: u.ID, Name: u.Name})
	}
	slices.SortFunc(r.units, func(a, b schema.Unit) int { return strings.Compare(a.ID, b.ID) })
	return r, nil
}

// Load reads a YAML, JSON or TOML roster file.
func Load(path string) (*Roster, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read roster %s: %w", path, err)
	}
	var file File
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("failed to decode roster %s: %w", path, err)
	}
	return New(file)
}

// IsAssignedEvaluator implements contract.UnitDirectory.
func (r *Roster) IsAssignedEvaluator(_ context.Context, evaluatorID, unitID string) (bool, error) {
	return r.assigned[unitID][evaluatorID], nil
}

// Units implements contract.UnitDirectory.
func (r *Roster) Units(_ context.Context) ([]schema.Unit, error) {
	return slices.Clone(r.units), nil
}

// RoleOf implements contract.RoleOracle.
func (r *Roster) RoleOf(_ context.Context, callerID string) (schema.Role, error) {
	p, ok := r.people[callerID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPerson, callerID)
	}
	return p.Role, nil
}

// HasAdminCapability implements contract.RoleOracle. Unknown callers hold no capability.
func (r *Roster) HasAdminCapability(_ context.Context, callerID string) (bool, error) {
	return r.people[callerID].Admin, nil
}
