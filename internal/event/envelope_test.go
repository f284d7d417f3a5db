package event

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestType_JSONMatchesSubjectSuffix(t *testing.T) {
	for _, typ := range []Type{TypeCashOperation, TypeTransfer, TypeReservedRecalculation} {
		env := NewEnvelope(typ, "msg-1", 7, nil)

		data, err := json.Marshal(env)
		require.NoError(t, err)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &decoded))
		// The body's type must agree with the subject the envelope is
		// published under.
		assert.Equal(t, typ.String(), decoded["type"])

		var back BalanceUpdateEnvelope
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, typ, back.Type)
	}
}
