package management

import (
	"membersync/internal/container"
	"membersync/internal/membership"
	"membersync/pkg/rules"
)

type CreateContainerRequest struct {
	Kind  string `json:"kind" binding:"required"`
	Title string `json:"title" binding:"required"`
	// RuleSet makes the container automated. Omit it for a manual one.
	RuleSet *rules.RuleSet `json:"rule_set"`
}

// ContainerResponse is a container with its current member count and, after
// a write that triggered one, the refresh outcome.
type ContainerResponse struct {
	container.Container
	MemberCount  int                `json:"member_count"`
	Refresh      *membership.Result `json:"refresh,omitempty"`
	RefreshError string             `json:"refresh_error,omitempty"`
}

type MembersResponse struct {
	ContainerID string   `json:"container_id"`
	MemberIDs   []string `json:"member_ids"`
}

type AddMembersRequest struct {
	IDs []string `json:"ids" binding:"required"`
}

type AddMembersResponse struct {
	ContainerID string `json:"container_id"`
	Added       int    `json:"added"`
	MemberCount int    `json:"member_count"`
}

type PreviewRequest struct {
	Kind    string        `json:"kind" binding:"required"`
	RuleSet rules.RuleSet `json:"rule_set"`
}
