package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lsmvec/model"
)

func TestCodecsInterchangeable(t *testing.T) {
	rec := model.Record{
		ID:       "doc-1",
		Vector:   []float64{0.5, -1.25, 3},
		Metadata: model.Metadata{"title": "hello", "score": 2.5, "tags": []any{"a", "b"}},
	}

	for _, enc := range []Codec{JSON{}, GoJSON{}} {
		for _, dec := range []Codec{JSON{}, GoJSON{}} {
			t.Run(enc.Name()+"->"+dec.Name(), func(t *testing.T) {
				b, err := enc.Marshal(rec)
				require.NoError(t, err)

				var got model.Record
				require.NoError(t, dec.Unmarshal(b, &got))
				assert.Equal(t, rec, got)
			})
		}
	}
}

func TestByName(t *testing.T) {
	c, ok := ByName("json")
	require.True(t, ok)
	assert.Equal(t, "json", c.Name())

	c, ok = ByName("go-json")
	require.True(t, ok)
	assert.Equal(t, "go-json", c.Name())

	_, ok = ByName("msgpack")
	assert.False(t, ok)
}

func TestMustMarshalPanicsOnUnsupported(t *testing.T) {
	assert.Panics(t, func() { MustMarshal(JSON{}, make(chan int)) })
	assert.NotPanics(t, func() { MustMarshal(nil, map[string]int{"a": 1}) })
}
