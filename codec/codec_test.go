package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manifest struct {
	Schema    []string       `json:"schema"`
	Groups    map[string]int `json:"groups"`
	Centroids [][]float64    `json:"centroids"`
	Note      string         `json:"note,omitempty"`
}

func TestByName(t *testing.T) {
	for _, name := range Names {
		c, err := ByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}

	c, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, Default, c)

	_, err = ByName("msgpack")
	assert.ErrorContains(t, err, `"msgpack"`)
}

func TestCodecsInterchangeable(t *testing.T) {
	in := manifest{
		Schema:    []string{"DeletionQV", "InsertionQV"},
		Groups:    map[string]int{"/ref/a": 10, "/ref/b": 3},
		Centroids: [][]float64{{2, 3.5}, {30, 0}},
	}

	std, err := JSON{}.Marshal(in)
	require.NoError(t, err)
	fast, err := GoJSON{}.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, string(std), string(fast))

	var out manifest
	require.NoError(t, GoJSON{}.Unmarshal(std, &out))
	assert.Equal(t, in, out)

	out = manifest{}
	require.NoError(t, JSON{}.Unmarshal(fast, &out))
	assert.Equal(t, in, out)
}

func TestMarshal_Unsupported(t *testing.T) {
	for _, c := range []Codec{JSON{}, GoJSON{}} {
		_, err := c.Marshal(make(chan int))
		assert.Error(t, err, c.Name())
	}
}
