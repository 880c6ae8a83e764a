package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/owt-mfg/erpsync/internal/errors"
)

func TestTransformValidPayload(t *testing.T) {
	tr, err := NewTransformer()
	require.NoError(t, err)

	result, err := tr.Transform(json.RawMessage(`{
		"CUST_ORDER_ID": "WO-1001",
		"CUST_ORDER_LINE_NO": 2,
		"BOM_PART_ID": "PART-A",
		"QTY": 5,
		"DESC": "bracket"
	}`))
	require.NoError(t, err)

	assert.Equal(t, "WO-1001-2-PART-A", result.Key.String())

	var doc map[string]any
	require.NoError(t, json.Unmarshal(result.Document, &doc))
	// Key fields are normalized to strings; everything else passes through.
	assert.Equal(t, "2", doc["CUST_ORDER_LINE_NO"])
	assert.Equal(t, "WO-1001", doc["CUST_ORDER_ID"])
	assert.Equal(t, "bracket", doc["DESC"])
	assert.EqualValues(t, 5, doc["QTY"])
}

func TestTransformMissingRequiredField(t *testing.T) {
	tr, err := NewTransformer()
	require.NoError(t, err)

	cases := map[string]string{
		"absent":       `{"CUST_ORDER_ID":"WO-1","BOM_PART_ID":"P"}`,
		"null":         `{"CUST_ORDER_ID":"WO-1","CUST_ORDER_LINE_NO":null,"BOM_PART_ID":"P"}`,
		"empty string": `{"CUST_ORDER_ID":"WO-1","CUST_ORDER_LINE_NO":"","BOM_PART_ID":"P"}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tr.Transform(json.RawMessage(payload))
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
}

func TestTransformMalformedPayload(t *testing.T) {
	tr, err := NewTransformer()
	require.NoError(t, err)

	for _, payload := range []string{"", "not json", `[1,2,3]`} {
		_, err := tr.Transform(json.RawMessage(payload))
		require.Error(t, err, payload)
		assert.True(t, apperrors.IsValidation(err), payload)
	}
}

func TestTransformCustomRequiredExpression(t *testing.T) {
	tr, err := NewTransformer("CUST_ORDER_ID", "CUST_ORDER_LINE_NO", "BOM_PART_ID", "SITE_ID")
	require.NoError(t, err)

	_, err = tr.Transform(json.RawMessage(`{
		"CUST_ORDER_ID": "WO-1",
		"CUST_ORDER_LINE_NO": "1",
		"BOM_PART_ID": "P"
	}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Contains(t, err.Error(), "SITE_ID")
}

func TestNewTransformerRejectsBadExpression(t *testing.T) {
	_, err := NewTransformer("foo[")
	assert.Error(t, err)
}
