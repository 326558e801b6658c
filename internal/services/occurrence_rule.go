// Package services provides the budgeting engine: occurrence expansion,
// materialization, aggregation and rollover orchestration.
//
// This file implements the Strategy Pattern for occurrence generation.
// Each frequency (monthly, weekly, bi-weekly) has its own rule that
// computes the calendar dates a template fires on within a target month.
package services

import (
	"fmt"
	"time"

	"bilancio/internal/core"
)

// OccurrenceRule is the strategy interface for occurrence generation.
// DatesIn must be pure: same inputs, same output, no I/O.
type OccurrenceRule interface {
	// DatesIn returns the sorted occurrence dates within month for a
	// template anchored on anchor. Dates are midnight UTC.
	DatesIn(anchor time.Time, month core.Month) []time.Time
}

// monthlyRule fires once per month on the anchor's day-of-month, clamped
// to the target month's length. An anchor on the 31st fires on the 30th
// of a 30-day month and on Feb 28/29; this clamping is deliberate policy.
type monthlyRule struct{}

func (monthlyRule) DatesIn(anchor time.Time, month core.Month) []time.Time {
	day := anchor.Day()
	if last := month.Days(); day > last {
		day = last
	}
	return []time.Time{time.Date(month.Year, time.Month(month.Month), day, 0, 0, 0, 0, time.UTC)}
}

// intervalRule fires every `days` days counted from the anchor. It walks
// backward from the anchor to on-or-before the first of the month, then
// forward collecting every in-month date, so the anchor may sit
// arbitrarily far before or after the target month.
type intervalRule struct {
	days int
}

func (r intervalRule) DatesIn(anchor time.Time, month core.Month) []time.Time {
	first := month.FirstDay()
	last := month.LastDay()

	d := dateOnly(anchor)
	for d.After(first) {
		d = d.AddDate(0, 0, -r.days)
	}

	var out []time.Time
	for !d.After(last) {
		if !d.Before(first) {
			out = append(out, d)
		}
		d = d.AddDate(0, 0, r.days)
	}
	return out
}

// occurrenceRules maps frequencies to their rules. The registry keeps the
// expense and income paths on a single implementation.
var occurrenceRules = map[core.Frequency]OccurrenceRule{
	core.Monthly:  monthlyRule{},
	core.Weekly:   intervalRule{days: 7},
	core.BiWeekly: intervalRule{days: 14},
}

// RuleFor returns the occurrence rule for a frequency.
func RuleFor(frequency core.Frequency) (OccurrenceRule, error) {
	rule, ok := occurrenceRules[frequency]
	if !ok {
		return nil, fmt.Errorf("unknown frequency: %s", frequency)
	}
	return rule, nil
}

// Occurrences expands a template into its occurrence dates within month.
// Templates that are soft-deleted, not auto-enabled, or missing an anchor
// produce no occurrences; a missing anchor on an auto-enabled template is
// a state validation should prevent, and is skipped defensively rather
// than treated as an error.
func Occurrences(tpl core.RecurringTemplate, month core.Month) []time.Time {
	if !tpl.Active() || !tpl.AutoCreate || tpl.AnchorDate == nil {
		return nil
	}
	rule, err := RuleFor(tpl.Frequency)
	if err != nil {
		return nil
	}
	return rule.DatesIn(*tpl.AnchorDate, month)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
