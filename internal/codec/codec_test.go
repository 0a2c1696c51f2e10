package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/revstore/internal/ir"
)

type monster struct {
	Name    string            `json:"name"`
	Level   int               `json:"level"`
	Speed   float64           `json:"speed"`
	Tags    []string          `json:"tags"`
	Attrs   map[string]string `json:"attrs,omitempty"`
	Guild   *string           `json:"guild_id"`
	Spawned time.Time         `json:"spawned"`
}

func sample() monster {
	guild := "g1"
	return monster{
		Name:    "Slime <green>",
		Level:   3,
		Speed:   1.5,
		Tags:    []string{"weak", "gooey"},
		Attrs:   map[string]string{"z": "1", "a": "2"},
		Guild:   &guild,
		Spawned: time.Date(2024, 1, 2, 3, 4, 5, 678, time.UTC),
	}
}

func TestCodecsRoundTripTypedPayload(t *testing.T) {
	for _, c := range []Codec{JSON, CBOR} {
		t.Run(c.Name(), func(t *testing.T) {
			in := sample()
			data, err := c.Marshal(in)
			require.NoError(t, err)

			var out monster
			require.NoError(t, c.Unmarshal(data, &out))
			assert.Equal(t, in.Name, out.Name)
			assert.Equal(t, in.Tags, out.Tags)
			assert.Equal(t, in.Attrs, out.Attrs)
			assert.Equal(t, *in.Guild, *out.Guild)
			assert.True(t, in.Spawned.Equal(out.Spawned), "time lost precision: %v", out.Spawned)
		})
	}
}

func TestCodecsAreDeterministic(t *testing.T) {
	for _, c := range []Codec{JSON, CBOR} {
		t.Run(c.Name(), func(t *testing.T) {
			a, err := c.Marshal(map[string]any{"b": 1, "a": 2, "c": []any{"x"}})
			require.NoError(t, err)
			b, err := c.Marshal(map[string]any{"c": []any{"x"}, "a": 2, "b": 1})
			require.NoError(t, err)
			assert.Equal(t, a, b)
		})
	}
}

func TestJSONDoesNotEscapeHTML(t *testing.T) {
	data, err := JSON.Marshal(map[string]string{"name": "<b>&"})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"<b>&"}`, string(data))
}

func TestDocumentDecodesStringKeyedMaps(t *testing.T) {
	for _, c := range []Codec{JSON, CBOR} {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Marshal(sample())
			require.NoError(t, err)

			doc, err := Document(c, data)
			require.NoError(t, err)

			m, ok := doc.(map[string]any)
			require.True(t, ok, "got %T", doc)
			assert.Equal(t, "Slime <green>", m["name"])

			v, err := ir.FromGo(m["level"])
			require.NoError(t, err)
			assert.Equal(t, ir.IRInt(3), v)
		})
	}
}

func TestByName(t *testing.T) {
	c, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, NameJSON, c.Name())

	c, err = ByName("cbor")
	require.NoError(t, err)
	assert.Equal(t, NameCBOR, c.Name())

	_, err = ByName("xml")
	assert.Error(t, err)
}

func TestToIR(t *testing.T) {
	v, err := ToIR(sample())
	require.NoError(t, err)

	obj, ok := v.(ir.IRObject)
	require.True(t, ok)
	assert.Equal(t, ir.IRInt(3), obj["level"])
	assert.Equal(t, ir.IRFloat(1.5), obj["speed"])
	assert.Equal(t, ir.IRArray{ir.IRString("weak"), ir.IRString("gooey")}, obj["tags"])
	assert.Equal(t, ir.IRString("g1"), obj["guild_id"])
}
