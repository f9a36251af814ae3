package kafka

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	msgs, err := encode([]Event{
		{Key: "search", Value: map[string]int{"hits": 2}},
		{Key: "find", Value: "design-patterns/singleton"},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("search"), msgs[0].Key)
	assert.JSONEq(t, `{"hits":2}`, string(msgs[0].Value))
	assert.Equal(t, `"design-patterns/singleton"`, string(msgs[1].Value))
}

func TestEncode_RejectsUnencodable(t *testing.T) {
	_, err := encode([]Event{{Key: "bad", Value: math.NaN()}})
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Query string `json:"query"`
	}
	got, err := DecodeJSON[payload]([]byte(`{"query":"jvm"}`))
	require.NoError(t, err)
	assert.Equal(t, "jvm", got.Query)

	_, err = DecodeJSON[payload]([]byte(`{`))
	assert.Error(t, err)
}
