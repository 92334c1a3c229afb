package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Logic combines the outcomes of a rule set's conditions.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Normalize upper-cases l and maps the empty string to LogicAnd.
func (l Logic) Normalize() Logic {
	s := strings.ToUpper(strings.TrimSpace(string(l)))
	if s == "" {
		return LogicAnd
	}
	return Logic(s)
}

func (l Logic) Valid() bool {
	n := l.Normalize()
	return n == LogicAnd || n == LogicOr
}

// Condition is one field/operator/value test.
type Condition struct {
	Field    string   `json:"field" bson:"field"`
	Operator Operator `json:"operator" bson:"operator"`
	Value    any      `json:"value" bson:"value"`
}

// RuleSet is the persisted and transmitted form of a container's rules:
//
//	{"rules": [{"field": "price", "operator": "greaterThan", "value": 100}], "logic": "AND"}
type RuleSet struct {
	Conditions []Condition `json:"rules" bson:"rules"`
	Logic      Logic       `json:"logic" bson:"logic"`
}

func (rs RuleSet) MarshalJSON() ([]byte, error) {
	type wire RuleSet
	w := wire(rs)
	if w.Conditions == nil {
		w.Conditions = []Condition{}
	}
	w.Logic = w.Logic.Normalize()
	return json.Marshal(w)
}

func (rs *RuleSet) UnmarshalJSON(data []byte) error {
	type wire RuleSet
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*rs = RuleSet(w)
	rs.Logic = rs.Logic.Normalize()
	return nil
}

var (
	ErrMissingField        = errors.New("field is required")
	ErrMissingOperator     = errors.New("operator is required")
	ErrMissingValue        = errors.New("value is required")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrValueNotSequence    = errors.New("value must be a list")
	ErrUnsupportedLogic    = errors.New("logic must be AND or OR")
)

// ConditionError locates a validation failure inside a rule set.
type ConditionError struct {
	Index int
	Field string
	Err   error
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("rules[%d] (%s): %v", e.Index, e.Field, e.Err)
}

func (e *ConditionError) Unwrap() error {
	return e.Err
}

// Validate checks the structure a merchant must get right when authoring a
// rule set. The engine itself tolerates every failure reported here.
func (rs RuleSet) Validate() error {
	var errs []error

	if !rs.Logic.Valid() {
		errs = append(errs, fmt.Errorf("%w, got %q", ErrUnsupportedLogic, rs.Logic))
	}

	for i, c := range rs.Conditions {
		if err := c.validate(); err != nil {
			errs = append(errs, &ConditionError{Index: i, Field: c.Field, Err: err})
		}
	}

	return errors.Join(errs...)
}

func (c Condition) validate() error {
	if strings.TrimSpace(c.Field) == "" {
		return ErrMissingField
	}
	if c.Operator == "" {
		return ErrMissingOperator
	}
	if !c.Operator.Valid() {
		return fmt.Errorf("%w: %s", ErrUnsupportedOperator, c.Operator)
	}
	if !c.Operator.RequiresValue() {
		return nil
	}
	if c.Value == nil {
		return ErrMissingValue
	}
	if s, ok := c.Value.(string); ok && s == "" && c.Operator != OperatorEquals && c.Operator != OperatorNotEquals {
		return ErrMissingValue
	}
	if c.Operator.RequiresSequence() {
		if _, ok := asSequence(c.Value); !ok {
			return ErrValueNotSequence
		}
	}
	return nil
}

// UnsupportedOperators lists the distinct unknown operators used by rs.
func (rs RuleSet) UnsupportedOperators() []Operator {
	var out []Operator
	seen := make(map[Operator]bool)
	for _, c := range rs.Conditions {
		if !c.Operator.Valid() && !seen[c.Operator] {
			seen[c.Operator] = true
			out = append(out, c.Operator)
		}
	}
	return out
}
