package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"membersync/pkg/rules"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Segment ")
	require.NoError(t, err)
	assert.Equal(t, KindSegment, k)

	_, err = ParseKind("catalog")
	assert.Error(t, err)
}

func TestContainer_Automated(t *testing.T) {
	assert.False(t, Container{ID: "c1"}.Automated())
	assert.True(t, Container{ID: "c1", RuleSet: &rules.RuleSet{}}.Automated())
}

func TestContainer_BSONRuleSetStillEvaluates(t *testing.T) {
	c := Container{
		ID:      "col-1",
		StoreID: "store-1",
		Kind:    KindCollection,
		RuleSet: &rules.RuleSet{
			Conditions: []rules.Condition{
				{Field: "size", Operator: rules.OperatorIn, Value: []string{"S", "M"}},
				{Field: "price", Operator: rules.OperatorGreaterThan, Value: 10},
			},
			Logic: rules.LogicAnd,
		},
	}

	raw, err := bson.Marshal(c)
	require.NoError(t, err)

	assert.Equal(t, "AND", bson.Raw(raw).Lookup("rule_set", "logic").StringValue())
	assert.Equal(t, "size", bson.Raw(raw).Lookup("rule_set", "rules", "0", "field").StringValue())

	var decoded Container
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	require.True(t, decoded.Automated())

	conds := decoded.RuleSet.Conditions
	require.Len(t, conds, 2)
	assert.True(t, rules.Evaluate(conds[0].Operator, "M", conds[0].Value))
	assert.True(t, rules.Evaluate(conds[1].Operator, 12.5, conds[1].Value))
	assert.NoError(t, decoded.RuleSet.Validate())
}

func TestContainer_ManualOmitsRuleSet(t *testing.T) {
	raw, err := bson.Marshal(Container{ID: "seg-1", Kind: KindSegment})
	require.NoError(t, err)

	var doc bson.M
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.NotContains(t, doc, "rule_set")
}
