package rules

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleSet_JSONShape(t *testing.T) {
	raw := `{"rules":[{"field":"price","operator":"greaterThan","value":100}],"logic":"AND"}`

	var rs RuleSet
	require.NoError(t, json.Unmarshal([]byte(raw), &rs))

	require.Len(t, rs.Conditions, 1)
	assert.Equal(t, "price", rs.Conditions[0].Field)
	assert.Equal(t, OperatorGreaterThan, rs.Conditions[0].Operator)
	assert.Equal(t, float64(100), rs.Conditions[0].Value)
	assert.Equal(t, LogicAnd, rs.Logic)

	out, err := json.Marshal(rs)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestRuleSet_JSONDefaults(t *testing.T) {
	var rs RuleSet
	require.NoError(t, json.Unmarshal([]byte(`{"rules":[]}`), &rs))
	assert.Equal(t, LogicAnd, rs.Logic)

	out, err := json.Marshal(RuleSet{Logic: "or"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"rules":[],"logic":"OR"}`, string(out))
}

func TestRuleSet_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rs      RuleSet
		wantErr error
	}{
		{
			name: "valid",
			rs: RuleSet{Logic: LogicOr, Conditions: []Condition{
				{Field: "tags", Operator: OperatorContains, Value: "sale"},
				{Field: "size", Operator: OperatorIn, Value: []any{"S", "M"}},
				{Field: "vendor", Operator: OperatorIsEmpty},
			}},
		},
		{
			name: "empty conditions are allowed",
			rs:   RuleSet{Logic: LogicAnd},
		},
		{
			name:    "missing field",
			rs:      RuleSet{Conditions: []Condition{{Operator: OperatorEquals, Value: 1}}},
			wantErr: ErrMissingField,
		},
		{
			name:    "missing operator",
			rs:      RuleSet{Conditions: []Condition{{Field: "price", Value: 1}}},
			wantErr: ErrMissingOperator,
		},
		{
			name:    "unsupported operator",
			rs:      RuleSet{Conditions: []Condition{{Field: "price", Operator: "between", Value: 1}}},
			wantErr: ErrUnsupportedOperator,
		},
		{
			name:    "missing value",
			rs:      RuleSet{Conditions: []Condition{{Field: "price", Operator: OperatorGreaterThan}}},
			wantErr: ErrMissingValue,
		},
		{
			name:    "in requires list",
			rs:      RuleSet{Conditions: []Condition{{Field: "size", Operator: OperatorIn, Value: "M"}}},
			wantErr: ErrValueNotSequence,
		},
		{
			name:    "bad logic",
			rs:      RuleSet{Logic: "XOR"},
			wantErr: ErrUnsupportedLogic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rs.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestRuleSet_Validate_ReportsConditionIndex(t *testing.T) {
	rs := RuleSet{Conditions: []Condition{
		{Field: "price", Operator: OperatorGreaterThan, Value: 1},
		{Field: "tags", Operator: "like", Value: "x"},
	}}

	err := rs.Validate()
	require.Error(t, err)

	var condErr *ConditionError
	require.True(t, errors.As(err, &condErr))
	assert.Equal(t, 1, condErr.Index)
	assert.Equal(t, "tags", condErr.Field)
}

func TestRuleSet_UnsupportedOperators(t *testing.T) {
	rs := RuleSet{Conditions: []Condition{
		{Field: "a", Operator: "like"},
		{Field: "b", Operator: OperatorEquals},
		{Field: "c", Operator: "like"},
		{Field: "d", Operator: "regex"},
	}}

	assert.Equal(t, []Operator{"like", "regex"}, rs.UnsupportedOperators())
}
