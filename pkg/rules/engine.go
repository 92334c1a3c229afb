package rules

import (
	"sort"
	"strings"
	"unicode"

	"membersync/internal/logger"
	"membersync/pkg/metrics"
)

// Entity is a record the engine can classify: a product, a customer.
type Entity interface {
	EntityID() string
	EntityStoreID() string
}

// Resolver extracts a comparable value for a named field. ok is false when the
// field is not known for the entity kind; a known field with no value
// resolves to (nil, true).
type Resolver[E Entity] interface {
	Resolve(entity E, field string) (value any, ok bool)
}

// FieldLister is implemented by resolvers that can name every field they
// understand. The engine reports unknown fields only for such resolvers.
type FieldLister interface {
	Fields() []string
}

// FieldMap is a Resolver backed by one accessor per field name.
type FieldMap[E Entity] map[string]func(E) any

func (m FieldMap[E]) Resolve(entity E, field string) (any, bool) {
	accessor, ok := m[field]
	if !ok {
		return nil, false
	}
	return accessor(entity), true
}

// Fields returns the sorted field names m understands.
func (m FieldMap[E]) Fields() []string {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// WithSnakeCaseAliases returns a copy of m in which every camelCase field is
// also reachable by its snake_case name (productType -> product_type).
func (m FieldMap[E]) WithSnakeCaseAliases() FieldMap[E] {
	out := make(FieldMap[E], len(m)*2)
	for field, accessor := range m {
		out[field] = accessor
		if alias := snakeCase(field); alias != field {
			if _, taken := m[alias]; !taken {
				out[alias] = accessor
			}
		}
	}
	return out
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Engine classifies entities of one kind against rule sets. It holds no
// mutable state and is safe for concurrent use.
type Engine[E Entity] struct {
	kind     string
	resolver Resolver[E]
	logger   logger.Logger
}

func NewEngine[E Entity](kind string, resolver Resolver[E], log logger.Logger) *Engine[E] {
	if log == nil {
		log = logger.NopLogger()
	}
	return &Engine[E]{
		kind:     kind,
		resolver: resolver,
		logger:   log,
	}
}

func (e *Engine[E]) Kind() string {
	return e.kind
}

// Matches reports whether entity satisfies rs. An empty AND rule set matches
// everything and an empty OR rule set matches nothing.
func (e *Engine[E]) Matches(entity E, rs RuleSet) bool {
	switch rs.Logic.Normalize() {
	case LogicAnd:
		for _, c := range rs.Conditions {
			if !e.evaluate(entity, c) {
				return false
			}
		}
		return true
	case LogicOr:
		for _, c := range rs.Conditions {
			if e.evaluate(entity, c) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// SelectMatching returns the IDs of the matching candidates in input order.
func (e *Engine[E]) SelectMatching(candidates []E, rs RuleSet) []string {
	e.reportInvalid(rs)

	ids := make([]string, 0)
	for _, candidate := range candidates {
		if e.Matches(candidate, rs) {
			ids = append(ids, candidate.EntityID())
		}
	}
	return ids
}

func (e *Engine[E]) evaluate(entity E, c Condition) bool {
	value, ok := e.resolver.Resolve(entity, c.Field)
	if !ok {
		return false
	}
	return Evaluate(c.Operator, value, c.Value)
}

// reportInvalid logs configuration problems once per evaluation pass rather
// than once per candidate.
func (e *Engine[E]) reportInvalid(rs RuleSet) {
	if !rs.Logic.Valid() {
		metrics.IncRuleInvalidCondition(e.kind, "logic")
		e.logger.Warnw("Unsupported rule set logic, nothing will match",
			"kind", e.kind,
			"logic", rs.Logic,
		)
	}

	for _, op := range rs.UnsupportedOperators() {
		metrics.IncRuleInvalidCondition(e.kind, "operator")
		e.logger.Warnw("Unsupported operator, condition never matches",
			"kind", e.kind,
			"operator", op,
		)
	}

	lister, ok := e.resolver.(FieldLister)
	if !ok || len(rs.Conditions) == 0 {
		return
	}
	known := make(map[string]struct{})
	for _, f := range lister.Fields() {
		known[f] = struct{}{}
	}
	for _, c := range rs.Conditions {
		if _, ok := known[c.Field]; !ok {
			metrics.IncRuleInvalidCondition(e.kind, "field")
			e.logger.Debugw("Unknown field, condition never matches",
				"kind", e.kind,
				"field", c.Field,
			)
		}
	}
}
