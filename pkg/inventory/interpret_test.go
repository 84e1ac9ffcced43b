package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterpretedInventory(t *testing.T) {
	const body = `{"inventory": [{"name": "apple", "quantity": 3, "unit": "items", "expected_expiry_date": "15/11/2025"}]}`

	tests := []struct {
		name string
		raw  string
	}{
		{"plain", body},
		{"json fence", "```json\n" + body + "\n```"},
		{"bare fence", "```\n" + body + "\n```"},
		{"single line fence", "```json " + body + "```"},
		{"surrounding whitespace", "\n\n  " + body + "  \n"},
		{"bare array", `[{"name": "apple", "quantity": 3, "unit": "items", "expected_expiry_date": "15/11/2025"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches, err := ParseInterpretedInventory(tt.raw)
			require.NoError(t, err)
			require.Len(t, batches, 1)
			assert.Equal(t, "apple", batches[0].Name)
			assertQty(t, "3", batches[0].Quantity)
		})
	}
}

func TestParseInterpretedInventory_Errors(t *testing.T) {
	_, err := ParseInterpretedInventory("   ")
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = ParseInterpretedInventory("```json\nI could not see any food.\n```")
	assert.Error(t, err)
}

func TestTextInterpreter(t *testing.T) {
	var interpreter Interpreter = TextInterpreter{}

	batches, err := interpreter.Interpret(context.Background(), []byte(`{"inventory": []}`))

	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestValidateBinID(t *testing.T) {
	assert.NoError(t, ValidateBinID("6731f5c8e41b4d34e4509b2a"))
	assert.NoError(t, ValidateBinID("my_bin-1"))

	for _, id := range []string{"", "bin/1", "bin 1", string(make([]byte, 256))} {
		var validationErr *ValidationError
		assert.ErrorAs(t, ValidateBinID(id), &validationErr, "%q", id)
	}
}

func TestValidateBatch(t *testing.T) {
	batches := decodeBatches(t, `{"inventory": [
		{"name": "apple", "type": "fruit", "quantity": 3, "unit": "items", "expected_expiry_date": "15/11/2025"},
		{"name": "", "type": "gadget", "quantity": "many", "unit": "liters", "expected_expiry_date": "tomorrow"},
		{"name": "salt", "quantity": -1, "expected_expiry_date": "01/01/2030"}
	]}`)

	assert.Empty(t, ValidateBatch(batches[0]))

	var fields []string
	for _, f := range ValidateBatch(batches[1]) {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"name", "quantity", "unit", "type", "expected_expiry_date"}, fields)

	findings := ValidateBatch(batches[2])
	require.Len(t, findings, 1)
	assert.Equal(t, "quantity", findings[0].Field)
}
