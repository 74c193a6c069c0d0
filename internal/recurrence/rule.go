package recurrence

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// DefaultCount is the instance cap stored on rules created without an explicit count.
const DefaultCount = 500

// Frequency is the closed set of supported recurrence shapes. The string value is the
// persisted and wire representation.
type Frequency string

const (
	// FrequencyWeekly repeats every seven days at the anchor's wall-clock time.
	FrequencyWeekly Frequency = "WEEKLY"
	// FrequencyMonthly repeats on the anchor's day of month, clamped to short months.
	FrequencyMonthly Frequency = "MONTHLY"
	// FrequencyMonthlyNthWeekday repeats on the nth anchor weekday of each month.
	FrequencyMonthlyNthWeekday Frequency = "MONTHLY_NTH_WEEKDAY"
)

// ErrInvalidRule is matched by every rule construction and expansion failure.
var ErrInvalidRule = errors.New("recurrence: invalid rule")

// RuleError reports which part of a rule was rejected.
type RuleError struct {
	Field  string
	Reason string
}

func (e *RuleError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("recurrence: invalid rule: %s %s", e.Field, e.Reason)
}

// Is lets errors.Is match ErrInvalidRule.
func (e *RuleError) Is(target error) bool {
	return target == ErrInvalidRule
}

// ParseFrequency converts a tag into a Frequency, rejecting anything outside the closed set.
func ParseFrequency(tag string) (Frequency, error) {
	switch f := Frequency(strings.ToUpper(strings.TrimSpace(tag))); f {
	case FrequencyWeekly, FrequencyMonthly, FrequencyMonthlyNthWeekday:
		return f, nil
	}
	return "", &RuleError{Field: "frequency", Reason: fmt.Sprintf("%q is not supported", tag)}
}

// Rule is the recurrence value object embedded in a reservation. The anchor is the
// reservation's start time and is supplied at expansion.
type Rule struct {
	Frequency   Frequency
	NthWeekdays []int
	Count       int
}

// NewRule validates the parts of a rule and returns it normalized: nth weekdays are
// sorted and de-duplicated, and a nil count becomes DefaultCount.
func NewRule(frequency string, nthWeekdays []int, count *int) (Rule, error) {
	freq, err := ParseFrequency(frequency)
	if err != nil {
		return Rule{}, err
	}

	rule := Rule{Frequency: freq, Count: DefaultCount}
	if count != nil {
		rule.Count = *count
	}

	if freq == FrequencyMonthlyNthWeekday {
		if len(nthWeekdays) == 0 {
			return Rule{}, &RuleError{Field: "nth_weekdays", Reason: "is required for " + string(freq)}
		}
		for _, n := range nthWeekdays {
			if n == 0 || n < -5 || n > 5 {
				return Rule{}, &RuleError{Field: "nth_weekdays", Reason: fmt.Sprintf("value %d is outside [-5,-1] and [1,5]", n)}
			}
		}
		rule.NthWeekdays = slices.Compact(slices.Sorted(slices.Values(nthWeekdays)))
	} else if len(nthWeekdays) > 0 {
		return Rule{}, &RuleError{Field: "nth_weekdays", Reason: "is only allowed for " + string(FrequencyMonthlyNthWeekday)}
	}

	return rule, nil
}

// Validate re-checks a rule that was built without NewRule.
func (r Rule) Validate() error {
	_, err := NewRule(string(r.Frequency), r.NthWeekdays, &r.Count)
	return err
}

// FormatNthWeekdays renders nth weekdays as the comma separated form used in storage.
func FormatNthWeekdays(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

// ParseNthWeekdays is the inverse of FormatNthWeekdays.
func ParseNthWeekdays(value string) ([]int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	fields := strings.Split(value, ",")
	out := make([]int, 0, len(fields))
	for _, field := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, &RuleError{Field: "nth_weekdays", Reason: fmt.Sprintf("%q is not an integer", field)}
		}
		out = append(out, n)
	}
	return out, nil
}

// Describe returns a short human readable summary such as "weekly, 10 times".
func (r Rule) Describe() string {
	switch r.Frequency {
	case FrequencyWeekly:
		return fmt.Sprintf("weekly, %d times", r.Count)
	case FrequencyMonthly:
		return fmt.Sprintf("monthly, %d times", r.Count)
	case FrequencyMonthlyNthWeekday:
		ordinals := make([]string, len(r.NthWeekdays))
		for i, n := range r.NthWeekdays {
			ordinals[i] = ordinal(n)
		}
		return fmt.Sprintf("monthly on the %s weekday, %d times", strings.Join(ordinals, " and "), r.Count)
	}
	return string(r.Frequency)
}

func ordinal(n int) string {
	switch n {
	case 1:
		return "1st"
	case 2:
		return "2nd"
	case 3:
		return "3rd"
	case -1:
		return "last"
	}
	if n < 0 {
		return fmt.Sprintf("%s to last", ordinal(-n))
	}
	return fmt.Sprintf("%dth", n)
}
