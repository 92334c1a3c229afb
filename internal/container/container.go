package container

import (
	"fmt"
	"strings"
	"time"

	"membersync/pkg/rules"
)

// Kind says which entities a container holds.
type Kind string

const (
	KindCollection Kind = "collection"
	KindSegment    Kind = "segment"
)

func Kinds() []Kind {
	return []Kind{KindCollection, KindSegment}
}

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindCollection, KindSegment:
		return k, nil
	default:
		return "", fmt.Errorf("unknown container kind %q (supported: collection, segment)", s)
	}
}

// Container is a product collection or customer segment. A container with a
// rule set is automated: its membership is owned by the synchronizer and
// manual edits are rejected.
type Container struct {
	ID        string         `json:"id" bson:"_id"`
	StoreID   string         `json:"store_id" bson:"store_id"`
	Kind      Kind           `json:"kind" bson:"kind"`
	Title     string         `json:"title" bson:"title"`
	RuleSet   *rules.RuleSet `json:"rule_set,omitempty" bson:"rule_set,omitempty"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" bson:"updated_at"`
}

func (c Container) Automated() bool {
	return c.RuleSet != nil
}
