package management

import (
	"strings"

	"membersync/internal/container"
	"membersync/pkg/errors"
	"membersync/pkg/rules"
)

const maxTitleLength = 255

// ValidateRuleSet rejects rule sets the engine would only partially honour.
func ValidateRuleSet(rs rules.RuleSet) error {
	if err := rs.Validate(); err != nil {
		return errors.ErrValidation.
			WithCause(err).
			WithDetail("message", "invalid rule set").
			WithDetail("reasons", strings.Split(err.Error(), "\n"))
	}
	return nil
}

func ValidateCreateContainer(req CreateContainerRequest) (container.Kind, error) {
	kind, err := container.ParseKind(req.Kind)
	if err != nil {
		return "", errors.ErrValidation.WithCause(err).WithDetail("field", "kind")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return "", errors.ErrValidation.WithDetail("message", "title is required")
	}
	if len(title) > maxTitleLength {
		return "", errors.ErrValidation.WithDetail("message", "title is too long")
	}

	if req.RuleSet != nil {
		if err := ValidateRuleSet(*req.RuleSet); err != nil {
			return "", err
		}
	}
	return kind, nil
}
