// Package conventions holds the naming table shared by every store module.
//
// The table maps each typed Operation to the suffix used when an identifier
// has to be rendered as a string, e.g. for collaborators that bind views to
// "users/all" or "users/read". Lookups inside the store never build strings;
// they key on the Operation itself.
package conventions

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Operation identifies an action, getter, mutation or state slot of a module.
type Operation int

// Actions.
const (
	Read Operation = iota + 1
	Create
	Update
	Destroy
	SetAll
)

// Getters.
const (
	ReadAll Operation = iota + 100
	ReadByID
)

// Mutations and state.
const (
	MutationSetAll Operation = iota + 200
	MutationDelete
	StateItems
)

// Actions lists every action operation in dispatch order.
var Actions = []Operation{Read, Create, Update, Destroy, SetAll}

// Getters lists every getter operation.
var Getters = []Operation{ReadAll, ReadByID}

// Mutations lists every mutation operation.
var Mutations = []Operation{MutationSetAll, MutationDelete}

// All lists every known operation.
var All = []Operation{Read, Create, Update, Destroy, SetAll, ReadAll, ReadByID, MutationSetAll, MutationDelete, StateItems}

// String returns a stable, human-readable name for the operation.
func (o Operation) String() string {
	switch o {
	case Read:
		return "read"
	case Create:
		return "create"
	case Update:
		return "update"
	case Destroy:
		return "destroy"
	case SetAll:
		return "setAll"
	case ReadAll:
		return "readAll"
	case ReadByID:
		return "readById"
	case MutationSetAll:
		return "mutationSetAll"
	case MutationDelete:
		return "mutationDelete"
	case StateItems:
		return "stateItems"
	default:
		return fmt.Sprintf("Operation(%d)", int(o))
	}
}

// IsAction reports whether o is dispatchable.
func (o Operation) IsAction() bool {
	return o >= Read && o <= SetAll
}

// IsGetter reports whether o is a getter.
func (o Operation) IsGetter() bool {
	return o == ReadAll || o == ReadByID
}

// IsMutation reports whether o is a mutation.
func (o Operation) IsMutation() bool {
	return o == MutationSetAll || o == MutationDelete
}

// Table is the naming convention table. One value is configured per process
// and passed explicitly to the factory that builds modules.
type Table struct {
	Separator      string `yaml:"separator" json:"separator"`
	Read           string `yaml:"read" json:"read"`
	Create         string `yaml:"create" json:"create"`
	Update         string `yaml:"update" json:"update"`
	Destroy        string `yaml:"destroy" json:"destroy"`
	SetAll         string `yaml:"setAll" json:"setAll"`
	ReadAll        string `yaml:"all" json:"all"`
	ReadByID       string `yaml:"byId" json:"byId"`
	Items          string `yaml:"data" json:"data"`
	SetAllMutation string `yaml:"setAllMutation" json:"setAllMutation"`
	DeleteMutation string `yaml:"deleteMutation" json:"deleteMutation"`
}

// Default returns the standard table.
func Default() Table {
	return Table{
		Separator:      "/",
		Read:           "read",
		Create:         "create",
		Update:         "update",
		Destroy:        "destroy",
		SetAll:         "setAll",
		ReadAll:        "all",
		ReadByID:       "byId",
		Items:          "data",
		SetAllMutation: "SET_ALL",
		DeleteMutation: "DELETE",
	}
}

// Suffix returns the suffix configured for op, or "" for an unknown operation.
func (t Table) Suffix(op Operation) string {
	switch op {
	case Read:
		return t.Read
	case Create:
		return t.Create
	case Update:
		return t.Update
	case Destroy:
		return t.Destroy
	case SetAll:
		return t.SetAll
	case ReadAll:
		return t.ReadAll
	case ReadByID:
		return t.ReadByID
	case StateItems:
		return t.Items
	case MutationSetAll:
		return t.SetAllMutation
	case MutationDelete:
		return t.DeleteMutation
	}
	return ""
}

// Identifier renders the namespaced identifier for op on resource,
// e.g. "users/read".
func (t Table) Identifier(resource string, op Operation) string {
	return resource + t.Separator + t.Suffix(op)
}

// Parse splits a namespaced identifier back into its resource and operation.
// The last separator wins so resource names may themselves contain it.
func (t Table) Parse(identifier string) (string, Operation, bool) {
	idx := strings.LastIndex(identifier, t.Separator)
	if idx <= 0 || t.Separator == "" {
		return "", 0, false
	}
	resource, suffix := identifier[:idx], identifier[idx+len(t.Separator):]
	for _, op := range All {
		if t.Suffix(op) == suffix {
			return resource, op, true
		}
	}
	return "", 0, false
}

// Merge returns a copy of t with every non-empty field of override applied.
func (t Table) Merge(override Table) Table {
	apply := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	apply(&t.Separator, override.Separator)
	apply(&t.Read, override.Read)
	apply(&t.Create, override.Create)
	apply(&t.Update, override.Update)
	apply(&t.Destroy, override.Destroy)
	apply(&t.SetAll, override.SetAll)
	apply(&t.ReadAll, override.ReadAll)
	apply(&t.ReadByID, override.ReadByID)
	apply(&t.Items, override.Items)
	apply(&t.SetAllMutation, override.SetAllMutation)
	apply(&t.DeleteMutation, override.DeleteMutation)
	return t
}

// Validate checks that the separator is set and that every suffix is present
// and unique within its category, so identifiers can be parsed back.
func (t Table) Validate() error {
	if t.Separator == "" {
		return errors.New("conventions: separator cannot be empty")
	}
	seen := make(map[string]Operation, len(All))
	for _, op := range All {
		s := t.Suffix(op)
		if s == "" {
			return fmt.Errorf("conventions: suffix for %s cannot be empty", op)
		}
		if strings.Contains(s, t.Separator) {
			return fmt.Errorf("conventions: suffix %q for %s contains the separator", s, op)
		}
		if prev, dup := seen[s]; dup {
			return fmt.Errorf("conventions: suffix %q is used by both %s and %s", s, prev, op)
		}
		seen[s] = op
	}
	return nil
}

// LoadFile reads table overrides from a YAML file and merges them over Default.
func LoadFile(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, err
	}
	var override Table
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Table{}, fmt.Errorf("conventions: parse %s: %w", path, err)
	}
	t := Default().Merge(override)
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}
