// Package codec selects the JSON implementation used for metadata: the
// columnar store manifest and the codebook comments of SAM headers.
package codec

import (
	"encoding/json"
	"fmt"

	gojson "github.com/goccy/go-json"
)

// Codec marshals metadata values. Implementations are safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is used for newly written manifests and headers.
var Default Codec = GoJSON{}

// Names lists the built-in codecs accepted by ByName.
var Names = []string{"go-json", "json"}

// ByName resolves a built-in codec. The empty name selects Default.
func ByName(name string) (Codec, error) {
	switch name {
	case "":
		return Default, nil
	case "go-json":
		return GoJSON{}, nil
	case "json":
		return JSON{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}

// GoJSON is backed by github.com/goccy/go-json.
type GoJSON struct{}

func (GoJSON) Marshal(v any) ([]byte, error)      { return gojson.Marshal(v) }
func (GoJSON) Unmarshal(data []byte, v any) error { return gojson.Unmarshal(data, v) }
func (GoJSON) Name() string                       { return "go-json" }

// JSON uses encoding/json. Both codecs produce interchangeable output, so a
// manifest written by one is readable by the other.
type JSON struct{}

func (JSON) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSON) Name() string                       { return "json" }
