package store

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/qvcompress/feature"
)

// FeatureTags maps feature channels to the two-letter tags record-oriented
// stores carry them in.
var FeatureTags = map[string]string{
	feature.DeletionQV:      "dq",
	feature.DeletionTag:     "dt",
	feature.InsertionQV:     "iq",
	feature.MergeQV:         "mq",
	feature.SubstitutionQV:  "sq",
	feature.SubstitutionTag: "st",
}

// RunLengthTag holds the run-length encoded DeletionTag written by the quantizer.
const RunLengthTag = "dr"

// Mandatory record field positions.
const (
	FieldQName = 0
	FieldSeq   = 9
	FieldQual  = 10

	NumFields = 11
)

// Tag is an optional record field NAME:TYPE:VALUE.
type Tag struct {
	Name  string
	Type  byte
	Value string
}

func (t Tag) String() string {
	return t.Name + ":" + string(t.Type) + ":" + t.Value
}

// Record is one read of a record-oriented store.
type Record struct {
	Fields []string
	Tags   []Tag
}

// Name returns the read name.
func (r *Record) Name() string { return r.Fields[FieldQName] }

// Qual returns the quality string.
func (r *Record) Qual() string { return r.Fields[FieldQual] }

// SetQual replaces the quality string.
func (r *Record) SetQual(q string) { r.Fields[FieldQual] = q }

// Tag looks up an optional field.
func (r *Record) Tag(name string) (Tag, bool) {
	for _, t := range r.Tags {
		if t.Name == name {
			return t, true
		}
	}
	return Tag{}, false
}

// SetTag adds t or replaces the tag of the same name.
func (r *Record) SetTag(t Tag) {
	for i := range r.Tags {
		if r.Tags[i].Name == t.Name {
			r.Tags[i] = t
			return
		}
	}
	r.Tags = append(r.Tags, t)
}

// RemoveTags drops every tag listed in names.
func (r *Record) RemoveTags(names ...string) {
	r.Tags = slices.DeleteFunc(r.Tags, func(t Tag) bool {
		return slices.Contains(names, t.Name)
	})
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	return &Record{Fields: slices.Clone(r.Fields), Tags: slices.Clone(r.Tags)}
}

// MissingFeatures returns the schema channels the record carries no tag for.
func (r *Record) MissingFeatures(schema feature.Schema) []string {
	var missing []string
	for _, name := range schema {
		tag, ok := FeatureTags[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		if _, ok := r.Tag(tag); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Features decodes the schema channels into a matrix with one row per base.
// QV tags are Phred+33 strings; tag channels keep their raw symbol codes.
func (r *Record) Features(schema feature.Schema) (*feature.Matrix, error) {
	if missing := r.MissingFeatures(schema); len(missing) > 0 {
		return nil, &MissingFeatureError{Store: "record " + r.Name(), Missing: missing}
	}

	var m *feature.Matrix
	for j, name := range schema {
		t, _ := r.Tag(FeatureTags[name])
		if m == nil {
			m = feature.NewMatrix(len(t.Value), schema.Len())
		}
		if len(t.Value) != m.Rows() {
			return nil, fmt.Errorf("record %s: tag %s has %d values, want %d", r.Name(), t.Name, len(t.Value), m.Rows())
		}
		tagChannel := feature.IsTag(name)
		for i := 0; i < len(t.Value); i++ {
			if tagChannel {
				m.Set(i, j, float64(t.Value[i]))
			} else {
				m.Set(i, j, float64(feature.CharToQV(t.Value[i])))
			}
		}
	}
	return m, nil
}

// SetFeatures encodes m back into the schema channel tags.
func (r *Record) SetFeatures(schema feature.Schema, m *feature.Matrix) error {
	if m.Cols() != schema.Len() {
		return feature.ErrShape
	}
	for j, name := range schema {
		tag, ok := FeatureTags[name]
		if !ok {
			return fmt.Errorf("record %s: no tag for channel %s", r.Name(), name)
		}
		buf := make([]byte, m.Rows())
		tagChannel := feature.IsTag(name)
		for i := range buf {
			v := int(m.At(i, j))
			if tagChannel {
				buf[i] = byte(v)
				continue
			}
			if v < 0 || v > feature.MaxPrintableQV {
				return fmt.Errorf("record %s: %s value %d is not printable", r.Name(), name, v)
			}
			buf[i] = feature.QVToChar(v)
		}
		r.SetTag(Tag{Name: tag, Type: 'Z', Value: string(buf)})
	}
	return nil
}

// Header holds the file-level metadata lines of a record-oriented store.
type Header struct {
	Lines []string
}

// Clone returns a deep copy.
func (h *Header) Clone() *Header {
	if h == nil {
		return &Header{}
	}
	return &Header{Lines: slices.Clone(h.Lines)}
}

// AddComment appends a @CO line.
func (h *Header) AddComment(text string) {
	h.Lines = append(h.Lines, "@CO\t"+text)
}

// AddProgram appends a @PG line.
func (h *Header) AddProgram(id, name, version, cmdline string) {
	fields := []string{"@PG", "ID:" + id, "PN:" + name}
	if version != "" {
		fields = append(fields, "VN:"+version)
	}
	if cmdline != "" {
		fields = append(fields, "CL:"+cmdline)
	}
	h.Lines = append(h.Lines, strings.Join(fields, "\t"))
}

// Comments returns the text of every @CO line.
func (h *Header) Comments() []string {
	var out []string
	for _, line := range h.Lines {
		if text, ok := strings.CutPrefix(line, "@CO\t"); ok {
			out = append(out, text)
		}
	}
	return out
}
