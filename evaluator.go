package bastion

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/xraph/bastion/policy"
	"github.com/xraph/bastion/window"
)

// mfaClockSkew tolerates MFA timestamps slightly ahead of the engine clock.
const mfaClockSkew = time.Minute

// Evaluator evaluates a single conditional policy against a request
// context. Any error means the policy could not be evaluated and the
// decision must deny.
type Evaluator interface {
	Evaluate(p *policy.Policy, rc *RequestContext, now time.Time) (bool, error)
}

// DefaultEvaluator returns the built-in condition evaluator.
func DefaultEvaluator() Evaluator { return &conditionEvaluator{} }

type conditionEvaluator struct {
	regexes sync.Map // pattern -> *regexp.Regexp
}

func (e *conditionEvaluator) Evaluate(p *policy.Policy, rc *RequestContext, now time.Time) (bool, error) {
	if err := p.Condition.Check(p.ConditionType); err != nil {
		return false, fmt.Errorf("%w: policy %q: %v", ErrConfiguration, p.Name, err)
	}

	switch p.ConditionType {
	case policy.ConditionLocation:
		return evalLocation(p.Condition.Location, rc), nil
	case policy.ConditionTimeRange:
		return evalTimeRange(p.Condition.TimeRange, rc, now), nil
	case policy.ConditionRiskScore:
		return rc.RiskScore <= p.Condition.RiskScore.MaxRiskScore, nil
	case policy.ConditionMFARequired:
		return evalMFA(p.Condition.MFA, rc, now), nil
	case policy.ConditionCustomAttribute:
		return e.evalCustomAttribute(p.Condition.CustomAttribute, rc)
	default:
		return false, fmt.Errorf("%w: policy %q: unknown condition type %q", ErrConfiguration, p.Name, p.ConditionType)
	}
}

func evalLocation(c *policy.LocationCondition, rc *RequestContext) bool {
	if rc.Location == "" {
		return false
	}
	for _, loc := range c.AllowedLocations {
		if strings.EqualFold(loc, rc.Location) {
			return true
		}
	}
	return false
}

func evalTimeRange(c *policy.TimeRangeCondition, rc *RequestContext, now time.Time) bool {
	loc, err := window.Location(rc.TimeZone)
	if err != nil {
		return false
	}
	return window.Active(c.DaysOfWeek, c.TimeRanges, now.In(loc))
}

func evalMFA(c *policy.MFACondition, rc *RequestContext, now time.Time) bool {
	if !rc.MFAVerified || rc.MFATimestamp == nil {
		return false
	}
	age := now.Sub(*rc.MFATimestamp)
	return age >= -mfaClockSkew && age <= time.Duration(c.MaxAgeSeconds)*time.Second
}

func (e *conditionEvaluator) evalCustomAttribute(c *policy.CustomAttributeCondition, rc *RequestContext) (bool, error) {
	val, ok := rc.CustomAttributes[c.Key]
	if !ok {
		return false, nil
	}
	switch c.MatchMode {
	case "", policy.MatchExact:
		return val == c.ExpectedValue, nil
	case policy.MatchRegex:
		re, err := e.compile(c.ExpectedValue)
		if err != nil {
			return false, fmt.Errorf("%w: invalid regex %q: %w", ErrConfiguration, c.ExpectedValue, err)
		}
		return re.MatchString(val), nil
	default:
		return false, fmt.Errorf("%w: unknown match mode %q", ErrConfiguration, c.MatchMode)
	}
}

func (e *conditionEvaluator) compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := e.regexes.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	e.regexes.Store(pattern, re)
	return re, nil
}

// conditionExpiry returns the instant after which a passing policy may stop
// passing for the same request context, or the zero time when the outcome
// only depends on inputs already in the fingerprint.
func conditionExpiry(p *policy.Policy, rc *RequestContext) time.Time {
	if p.ConditionType == policy.ConditionMFARequired && p.Condition.MFA != nil && rc.MFATimestamp != nil {
		return rc.MFATimestamp.Add(time.Duration(p.Condition.MFA.MaxAgeSeconds) * time.Second)
	}
	return time.Time{}
}
