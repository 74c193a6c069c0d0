package recurrence

import (
	"iter"
	"time"

	"github.com/teambition/rrule-go"
)

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// Expander turns rules into lazy instant sequences. It holds only immutable settings
// and is safe for concurrent use.
type Expander struct {
	location *time.Location
	maxCount int
}

// NewExpander constructs an expander that evaluates wall-clock times in loc and never
// yields more than maxCount instants per rule. A nil loc means UTC; maxCount <= 0
// means DefaultCount.
func NewExpander(loc *time.Location, maxCount int) *Expander {
	if loc == nil {
		loc = time.UTC
	}
	if maxCount <= 0 {
		maxCount = DefaultCount
	}
	return &Expander{location: loc, maxCount: maxCount}
}

// Location reports the zone instants are evaluated in.
func (e *Expander) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.UTC
	}
	return e.location
}

// MaxCount reports the per-rule ceiling.
func (e *Expander) MaxCount() int {
	if e == nil || e.maxCount <= 0 {
		return DefaultCount
	}
	return e.maxCount
}

// Expand returns the strictly increasing instants generated by rule from anchor.
// Nothing is computed until the sequence is ranged over, and stopping early stops
// generation. A rule whose count is zero or negative yields an empty sequence.
func (e *Expander) Expand(rule Rule, anchor time.Time) (iter.Seq[time.Time], error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	limit := min(rule.Count, e.MaxCount())
	if limit <= 0 {
		return func(func(time.Time) bool) {}, nil
	}

	anchor = anchor.In(e.Location())
	// rrule works in whole seconds; the remainder is added back to every instant.
	whole := anchor.Truncate(time.Second)
	frac := anchor.Sub(whole)
	opt := rrule.ROption{
		Dtstart: whole,
		Count:   limit,
	}

	switch rule.Frequency {
	case FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	case FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
		if day := anchor.Day(); day > 28 {
			// The last existing day among 28..day clamps to short months.
			for d := 28; d <= day; d++ {
				opt.Bymonthday = append(opt.Bymonthday, d)
			}
			opt.Bysetpos = []int{-1}
		} else {
			opt.Bymonthday = []int{day}
		}
	case FrequencyMonthlyNthWeekday:
		opt.Freq = rrule.MONTHLY
		weekday := rruleWeekdays[anchor.Weekday()]
		for _, n := range rule.NthWeekdays {
			opt.Byweekday = append(opt.Byweekday, weekday.Nth(n))
		}
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, &RuleError{Field: "frequency", Reason: err.Error()}
	}

	return func(yield func(time.Time) bool) {
		next := r.Iterator()
		var last time.Time
		for emitted := 0; emitted < limit; {
			instant, ok := next()
			if !ok {
				return
			}
			instant = instant.Add(frac)
			if emitted > 0 && !instant.After(last) {
				continue
			}
			last = instant
			emitted++
			if !yield(instant) {
				return
			}
		}
	}, nil
}

// ExpandAll collects the full sequence. It is intended for tests and small rules.
func (e *Expander) ExpandAll(rule Rule, anchor time.Time) ([]time.Time, error) {
	seq, err := e.Expand(rule, anchor)
	if err != nil {
		return nil, err
	}
	var out []time.Time
	for instant := range seq {
		out = append(out, instant)
	}
	return out, nil
}
