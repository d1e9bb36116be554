package canonicaljson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize_SortsObjectKeys(t *testing.T) {
	v := map[string]interface{}{
		"b": 1,
		"a": 2,
		"c": 3,
	}
	out, err := Canonicalize(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1,"c":3}`, string(out))
}

func TestCanonicalize_PreservesArrayOrder(t *testing.T) {
	v := []interface{}{3, 1, 2}
	out, err := Canonicalize(v)
	require.NoError(t, err)
	assert.Equal(t, `[3,1,2]`, string(out))
}

func TestCanonicalize_NoHTMLEscaping(t *testing.T) {
	v := map[string]interface{}{"tag": "<b>&amp;</b>"}
	out, err := Canonicalize(v)
	require.NoError(t, err)
	assert.Equal(t, `{"tag":"<b>&amp;</b>"}`, string(out))
}

func TestCanonicalize_DeterministicAcrossEquivalentMapOrdering(t *testing.T) {
	a := map[string]interface{}{"x": 1, "y": 2, "z": 3}
	b := map[string]interface{}{"z": 3, "y": 2, "x": 1}
	outA, err := Canonicalize(a)
	require.NoError(t, err)
	outB, err := Canonicalize(b)
	require.NoError(t, err)
	assert.Equal(t, string(outA), string(outB))
}

func TestCanonicalize_NestedStructures(t *testing.T) {
	v := map[string]interface{}{
		"lines": []interface{}{
			map[string]interface{}{"id": "L2", "qty": 2},
			map[string]interface{}{"id": "L1", "qty": 1},
		},
	}
	out, err := Canonicalize(v)
	require.NoError(t, err)
	assert.Equal(t, `{"lines":[{"id":"L2","qty":2},{"id":"L1","qty":1}]}`, string(out))
}

func TestCanonicalize_NumberLiteralsPreservedExactly(t *testing.T) {
	type payload struct {
		Amount json.Number `json:"amount"`
	}
	v := payload{Amount: json.Number("19.50")}
	out, err := Canonicalize(v)
	require.NoError(t, err)
	assert.Equal(t, `{"amount":19.50}`, string(out))
}
