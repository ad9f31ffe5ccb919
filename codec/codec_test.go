package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	_, ok = ByName("msgpack")
	assert.False(t, ok)
}

func TestJSONRoundTrip(t *testing.T) {
	type payload struct {
		Tasks []string `json:"tasks"`
		Rows  int      `json:"rows"`
	}

	in := payload{Tasks: []string{"NR-AR", "NR-ER"}, Rows: 7200}

	b, err := JSON{}.Marshal(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, JSON{}.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}
