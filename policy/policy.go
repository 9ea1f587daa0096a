// Package policy defines conditional policies: context predicates that gate a
// permission on top of any role or grant that would otherwise allow it.
package policy

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/bastion/errdefs"
	"github.com/xraph/bastion/id"
	"github.com/xraph/bastion/permission"
	"github.com/xraph/bastion/window"
)

// ConditionType names the predicate a policy evaluates.
type ConditionType string

const (
	ConditionLocation        ConditionType = "location"
	ConditionTimeRange       ConditionType = "time_range"
	ConditionRiskScore       ConditionType = "risk_score"
	ConditionMFARequired     ConditionType = "mfa_required"
	ConditionCustomAttribute ConditionType = "custom_attribute"
)

// Known reports whether t is a condition type this version can evaluate.
func (t ConditionType) Known() bool {
	switch t {
	case ConditionLocation, ConditionTimeRange, ConditionRiskScore, ConditionMFARequired, ConditionCustomAttribute:
		return true
	}
	return false
}

// MatchMode selects how a custom attribute is compared.
type MatchMode string

const (
	MatchExact MatchMode = "exact"
	MatchRegex MatchMode = "regex"
)

// LocationCondition passes when the request location is in the allow list.
// Comparison is case-insensitive.
type LocationCondition struct {
	AllowedLocations []string `json:"allowed_locations" bson:"allowed_locations" validate:"required,min=1,dive,required"`
}

// TimeRangeCondition passes when the request's local time falls inside any
// range. DaysOfWeek, when set, narrows the match.
type TimeRangeCondition struct {
	TimeRanges []window.TimeRange `json:"time_ranges" bson:"time_ranges" validate:"required,min=1"`
	DaysOfWeek []time.Weekday     `json:"days_of_week,omitempty" bson:"days_of_week,omitempty"`
}

// RiskScoreCondition passes when the request risk score is at most
// MaxRiskScore.
type RiskScoreCondition struct {
	MaxRiskScore int `json:"max_risk_score" bson:"max_risk_score" validate:"gte=0,lte=100"`
}

// MFACondition passes when MFA was verified no longer than MaxAgeSeconds ago.
type MFACondition struct {
	MaxAgeSeconds int64 `json:"max_age_seconds" bson:"max_age_seconds" validate:"gt=0"`
}

// CustomAttributeCondition passes when the request attribute Key equals
// ExpectedValue, or matches it as a regular expression in MatchRegex mode.
type CustomAttributeCondition struct {
	Key           string    `json:"key" bson:"key" validate:"required"`
	ExpectedValue string    `json:"expected_value" bson:"expected_value"`
	MatchMode     MatchMode `json:"match_mode,omitempty" bson:"match_mode,omitempty" validate:"omitempty,oneof=exact regex"`
}

// ConditionData is the typed payload of a policy. Exactly one variant is set,
// the one matching the policy's ConditionType.
type ConditionData struct {
	Location        *LocationCondition        `json:"location,omitempty" bson:"location,omitempty"`
	TimeRange       *TimeRangeCondition       `json:"time_range,omitempty" bson:"time_range,omitempty"`
	RiskScore       *RiskScoreCondition       `json:"risk_score,omitempty" bson:"risk_score,omitempty"`
	MFA             *MFACondition             `json:"mfa,omitempty" bson:"mfa,omitempty"`
	CustomAttribute *CustomAttributeCondition `json:"custom_attribute,omitempty" bson:"custom_attribute,omitempty"`
}

func (d ConditionData) count() int {
	n := 0
	for _, set := range []bool{d.Location != nil, d.TimeRange != nil, d.RiskScore != nil, d.MFA != nil, d.CustomAttribute != nil} {
		if set {
			n++
		}
	}
	return n
}

// Target binds a policy to a permission, a resource type, or both. A target
// with both fields set matches only that pair.
type Target struct {
	PermissionID *id.PermissionID `json:"permission_id,omitempty" bson:"permission_id,omitempty"`
	ResourceType string           `json:"resource_type,omitempty" bson:"resource_type,omitempty"`
}

// Matches reports whether the target selects the given permission and
// resource type.
func (t Target) Matches(permID id.PermissionID, resourceType string) bool {
	if t.PermissionID == nil && t.ResourceType == "" {
		return false
	}
	if t.PermissionID != nil && t.PermissionID.String() != permID.String() {
		return false
	}
	if t.ResourceType != "" && t.ResourceType != resourceType {
		return false
	}
	return true
}

// Policy is a conditional predicate applied to matching decisions.
type Policy struct {
	ID            id.PolicyID          `json:"id" db:"id"`
	Name          string               `json:"name" db:"name" validate:"required,max=128"`
	Description   string               `json:"description,omitempty" db:"description"`
	ConditionType ConditionType        `json:"condition_type" db:"condition_type" validate:"required"`
	Condition     ConditionData        `json:"condition_data" db:"condition_data"`
	IsGlobal      bool                 `json:"is_global" db:"is_global"`
	Targets       []Target             `json:"targets,omitempty" db:"targets"`
	RiskLevel     permission.RiskLevel `json:"risk_level,omitempty" db:"risk_level"`
	IsActive      bool                 `json:"is_active" db:"is_active"`
	Metadata      map[string]any       `json:"metadata,omitempty" db:"metadata"`
	CreatedAt     time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at" db:"updated_at"`
}

// AppliesTo reports whether the policy gates the given permission on the
// given resource type.
func (p *Policy) AppliesTo(permID id.PermissionID, resourceType string) bool {
	if p.IsGlobal {
		return true
	}
	for _, t := range p.Targets {
		if t.Matches(permID, resourceType) {
			return true
		}
	}
	return false
}

var validate = validator.New()

// Validate checks the policy at write time: known condition type, exactly
// one matching payload with valid contents, and at least one target unless
// the policy is global. Every failure wraps errdefs.ErrValidation.
func (p *Policy) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrValidation, err)
	}
	if !p.ConditionType.Known() {
		return fmt.Errorf("%w: unknown condition type %q", errdefs.ErrValidation, p.ConditionType)
	}
	if p.RiskLevel != "" && !p.RiskLevel.Valid() {
		return fmt.Errorf("%w: unknown risk level %q", errdefs.ErrValidation, p.RiskLevel)
	}
	if !p.IsGlobal && len(p.Targets) == 0 {
		return fmt.Errorf("%w: policy %q is neither global nor targeted", errdefs.ErrValidation, p.Name)
	}
	for i, t := range p.Targets {
		if t.PermissionID == nil && t.ResourceType == "" {
			return fmt.Errorf("%w: target %d is empty", errdefs.ErrValidation, i)
		}
	}
	if err := p.Condition.Check(p.ConditionType); err != nil {
		return fmt.Errorf("%w: %v", errdefs.ErrValidation, err)
	}
	return nil
}

// Check verifies that the payload matches t and is well formed. It is used
// at write time and again before evaluation, where a failure wraps
// errdefs.ErrConfiguration.
func (d ConditionData) Check(t ConditionType) error {
	if d.count() != 1 {
		return fmt.Errorf("condition data must hold exactly one variant, has %d", d.count())
	}

	var err error
	switch t {
	case ConditionLocation:
		err = checkVariant(d.Location)
	case ConditionTimeRange:
		err = checkVariant(d.TimeRange)
	case ConditionRiskScore:
		err = checkVariant(d.RiskScore)
	case ConditionMFARequired:
		err = checkVariant(d.MFA)
	case ConditionCustomAttribute:
		err = checkVariant(d.CustomAttribute)
	default:
		return fmt.Errorf("unknown condition type %q", t)
	}
	if err != nil {
		return fmt.Errorf("%s payload: %w", t, err)
	}

	switch t {
	case ConditionTimeRange:
		if err := window.ValidateRanges(d.TimeRange.TimeRanges); err != nil {
			return err
		}
		if err := window.ValidateDays(d.TimeRange.DaysOfWeek); err != nil {
			return err
		}
	case ConditionCustomAttribute:
		if d.CustomAttribute.MatchMode == MatchRegex {
			if _, err := regexp.Compile(d.CustomAttribute.ExpectedValue); err != nil {
				return fmt.Errorf("custom_attribute regex: %w", err)
			}
		}
	}
	return nil
}

// checkVariant validates a typed payload. A nil pointer means the payload
// does not match the condition type.
func checkVariant[T any](v *T) error {
	if v == nil {
		return errors.New("missing")
	}
	return validate.Struct(v)
}

// ListFilter contains filters for listing policies.
type ListFilter struct {
	ConditionType ConditionType `json:"condition_type,omitempty"`
	IsActive      *bool         `json:"is_active,omitempty"`
	Search        string        `json:"search,omitempty"`
	Limit         int           `json:"limit,omitempty"`
	Offset        int           `json:"offset,omitempty"`
}
