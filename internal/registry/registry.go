// Package registry loads the flat configuration files of the PLM server
// (states, certification form, password policy, account directory) into
// read-only snapshots that services receive explicitly.
package registry

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

const (
	StatesFile   = "states.txt"
	FormFile     = "form.txt"
	PolicyFile   = "password_policy.csv"
	AccountsFile = "accounts.csv"

	// DefaultColor is reported for states missing from the registry.
	DefaultColor = "#777777"
)

// State is a named lifecycle state. Its position in the registry defines the
// release progression order.
type State struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// FormField is a certification field definition.
type FormField struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Order int    `json:"order"`
}

// Snapshot is an immutable view of the configuration files.
type Snapshot struct {
	States []State
	Fields []FormField
	Policy Policy
}

// DefaultState is the first registry entry.
func (s *Snapshot) DefaultState() State {
	return s.States[0]
}

// LookupState matches name case-insensitively against the registry.
func (s *Snapshot) LookupState(name string) (State, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, state := range s.States {
		if strings.ToLower(state.Name) == key {
			return state, true
		}
	}

	return State{}, false
}

// StateOrder returns the registry position of a state.
func (s *Snapshot) StateOrder(name string) (int, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	for idx, state := range s.States {
		if strings.ToLower(state.Name) == key {
			return idx, true
		}
	}

	return 0, false
}

// StateColor returns the display color of a state.
func (s *Snapshot) StateColor(name string) string {
	if state, ok := s.LookupState(name); ok {
		return state.Color
	}

	return DefaultColor
}

// Registry holds the current snapshot and swaps it atomically on Reload.
type Registry struct {
	dir     string
	current atomic.Pointer[Snapshot]
}

// New loads the configuration files from dir, writing defaults for missing files.
func New(dir string) (*Registry, error) {
	r := &Registry{dir: dir}
	if err := r.Reload(); err != nil {
		return nil, err
	}

	return r, nil
}

// NewStatic wraps a fixed snapshot, used where no configuration directory exists.
func NewStatic(snapshot *Snapshot) *Registry {
	r := &Registry{}
	r.current.Store(snapshot)
	return r
}

// Snapshot returns the current configuration.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// Reload re-reads the configuration files. The previous snapshot stays active on error.
func (r *Registry) Reload() error {
	if r.dir == "" {
		return nil
	}

	states, err := loadStates(filepath.Join(r.dir, StatesFile))
	if err != nil {
		return fmt.Errorf("load states: %w", err)
	}

	fields, err := loadFormFields(filepath.Join(r.dir, FormFile))
	if err != nil {
		return fmt.Errorf("load form fields: %w", err)
	}

	policy, err := loadPolicy(filepath.Join(r.dir, PolicyFile))
	if err != nil {
		return fmt.Errorf("load password policy: %w", err)
	}

	r.current.Store(&Snapshot{States: states, Fields: fields, Policy: policy})
	logrus.Debugf("registry loaded from %s: %d states, %d form fields", r.dir, len(states), len(fields))

	return nil
}

// DefaultSnapshot returns the built-in configuration.
func DefaultSnapshot() *Snapshot {
	return &Snapshot{
		States: defaultStates(),
		Fields: defaultFields(),
		Policy: DefaultPolicy(),
	}
}
