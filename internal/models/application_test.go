package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringField(t *testing.T) {
	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"annualRevenue": 1200000, "rate": 2.5, "businessName": "Acme", "empty": null}`), &fields))

	assert.Equal(t, "1200000", StringField(fields, "annualRevenue"))
	assert.Equal(t, "2.5", StringField(fields, "rate"))
	assert.Equal(t, "Acme", StringField(fields, "businessName"))
	assert.Equal(t, "", StringField(fields, "empty"))
	assert.Equal(t, "", StringField(fields, "missing"))
	assert.Equal(t, "7", StringField(map[string]interface{}{"n": 7}, "n"))
}

func TestTerms_WireKeys(t *testing.T) {
	raw, err := json.Marshal(Terms{Rate: "2.9%", HandNetProfit: "$1,450"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"rate":"2.9%","hand_net_profit":"$1,450"}`, string(raw))
}
