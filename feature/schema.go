package feature

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Channel names of the Quiver feature set.
const (
	DeletionQV      = "DeletionQV"
	DeletionTag     = "DeletionTag"
	InsertionQV     = "InsertionQV"
	MergeQV         = "MergeQV"
	SubstitutionQV  = "SubstitutionQV"
	SubstitutionTag = "SubstitutionTag"
)

// QuiverFeatures is the default schema used when the caller does not pick one.
var QuiverFeatures = Schema{DeletionQV, DeletionTag, InsertionQV, MergeQV, SubstitutionQV}

var (
	// ErrEmptySchema is returned for a schema without channels.
	ErrEmptySchema = errors.New("feature: schema is empty")
	// ErrShape is returned when a matrix does not have one column per schema channel.
	ErrShape = errors.New("feature: matrix shape does not match schema")
)

// Schema is an ordered list of feature channel names. The order defines the
// column order of every Matrix built against it.
type Schema []string

// ParseSchema parses a comma separated channel list.
func ParseSchema(s string) (Schema, error) {
	var schema Schema
	for _, part := range strings.Split(s, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		schema = append(schema, name)
	}
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return schema, nil
}

// Validate reports empty schemas, blank names and duplicates.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return ErrEmptySchema
	}
	seen := make(map[string]struct{}, len(s))
	for i, name := range s {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("feature: blank channel name at position %d", i)
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("feature: duplicate channel %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Len returns the number of channels.
func (s Schema) Len() int { return len(s) }

// Index returns the column of name, or -1.
func (s Schema) Index(name string) int { return slices.Index(s, name) }

// Equal reports whether both schemas list the same channels in the same order.
func (s Schema) Equal(o Schema) bool { return slices.Equal(s, o) }

// Clone returns a copy of the schema.
func (s Schema) Clone() Schema { return slices.Clone(s) }

func (s Schema) String() string { return strings.Join(s, ",") }

// Missing returns the channels of s absent from available, in schema order.
func (s Schema) Missing(available []string) []string {
	var missing []string
	for _, name := range s {
		if !slices.Contains(available, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// SentinelColumn returns the column whose raw value marks skipped and
// no-call bases: InsertionQV when present, otherwise the first column.
func (s Schema) SentinelColumn() int {
	if i := s.Index(InsertionQV); i >= 0 {
		return i
	}
	return 0
}

// TagColumns returns the columns holding categorical base symbols.
func (s Schema) TagColumns() []int {
	var cols []int
	for i, name := range s {
		if IsTag(name) {
			cols = append(cols, i)
		}
	}
	return cols
}

// IsTag reports whether the channel carries categorical base symbols rather
// than quality scores.
func IsTag(name string) bool {
	return strings.HasSuffix(name, "Tag")
}

// SchemaMismatchError is returned when data laid out for one schema is used
// with a codebook recorded for another.
type SchemaMismatchError struct {
	Expected Schema
	Actual   Schema
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: codebook has [%s], data has [%s]", e.Expected, e.Actual)
}

// CheckSchema returns a *SchemaMismatchError unless actual equals expected.
func CheckSchema(expected, actual Schema) error {
	if expected.Equal(actual) {
		return nil
	}
	return &SchemaMismatchError{Expected: expected.Clone(), Actual: actual.Clone()}
}
