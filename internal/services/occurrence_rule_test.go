package services

import (
	"testing"
	"time"

	"bilancio/internal/core"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y, m, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func cents(n int64) *core.Money {
	return &core.Money{Cents: n}
}

func TestMonthlyRuleClampsToMonthLength(t *testing.T) {
	tests := []struct {
		name   string
		anchor time.Time
		month  core.Month
		want   time.Time
	}{
		{"day within month", date(2025, 1, 15), core.Month{Year: 2025, Month: 3}, date(2025, 3, 15)},
		{"day 31 in 30-day month", date(2025, 1, 31), core.Month{Year: 2025, Month: 4}, date(2025, 4, 30)},
		{"day 31 in february", date(2025, 1, 31), core.Month{Year: 2025, Month: 2}, date(2025, 2, 28)},
		{"day 31 in leap february", date(2025, 1, 31), core.Month{Year: 2024, Month: 2}, date(2024, 2, 29)},
		{"day 30 in february", date(2025, 1, 30), core.Month{Year: 2025, Month: 2}, date(2025, 2, 28)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := monthlyRule{}.DatesIn(tt.anchor, tt.month)
			if len(got) != 1 {
				t.Fatalf("monthly rule returned %d dates, want exactly 1", len(got))
			}
			if !got[0].Equal(tt.want) {
				t.Errorf("DatesIn() = %v, want %v", got[0], tt.want)
			}
		})
	}
}

func TestWeeklyRuleDatesAreSevenDaysApartAndInMonth(t *testing.T) {
	anchors := []time.Time{
		date(2025, 3, 7),   // inside the month
		date(2024, 6, 14),  // far in the past
		date(2026, 1, 2),   // in the future
	}
	month := core.Month{Year: 2025, Month: 3}

	for _, anchor := range anchors {
		got := intervalRule{days: 7}.DatesIn(anchor, month)
		if len(got) == 0 {
			t.Fatalf("anchor %v produced no occurrences", anchor)
		}
		for i, d := range got {
			if !month.Contains(d) {
				t.Errorf("anchor %v: occurrence %v outside month", anchor, d)
			}
			if i > 0 {
				if diff := d.Sub(got[i-1]); diff != 7*24*time.Hour {
					t.Errorf("anchor %v: consecutive dates %v apart, want 168h", anchor, diff)
				}
			}
		}
	}
}

func TestBiWeeklyRuleDecember2025(t *testing.T) {
	got := intervalRule{days: 14}.DatesIn(date(2025, 12, 1), core.Month{Year: 2025, Month: 12})
	want := []time.Time{date(2025, 12, 1), date(2025, 12, 15), date(2025, 12, 29)}
	if len(got) != len(want) {
		t.Fatalf("DatesIn() returned %d dates, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("DatesIn()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestIntervalRuleAnchorAfterMonth(t *testing.T) {
	// Anchor in February, expanding January: walking back lands on
	// Jan 1, 15, 29 for a bi-weekly anchored on Feb 12.
	got := intervalRule{days: 14}.DatesIn(date(2025, 2, 12), core.Month{Year: 2025, Month: 1})
	want := []time.Time{date(2025, 1, 1), date(2025, 1, 15), date(2025, 1, 29)}
	if len(got) != len(want) {
		t.Fatalf("DatesIn() returned %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("DatesIn()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestOccurrencesSkipsInertTemplates(t *testing.T) {
	month := core.Month{Year: 2025, Month: 6}
	deleted := time.Now()

	tests := []struct {
		name string
		tpl  core.RecurringTemplate
	}{
		{"auto disabled", core.RecurringTemplate{
			Kind: core.KindExpense, Name: "Rent", Frequency: core.Monthly,
			AnchorDate: datePtr(2025, 1, 1),
		}},
		{"missing anchor", core.RecurringTemplate{
			Kind: core.KindExpense, Name: "Rent", Frequency: core.Monthly,
			AutoCreate: true,
		}},
		{"soft deleted", core.RecurringTemplate{
			Kind: core.KindExpense, Name: "Rent", Frequency: core.Monthly,
			AnchorDate: datePtr(2025, 1, 1), AutoCreate: true, DeletedAt: &deleted,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Occurrences(tt.tpl, month); got != nil {
				t.Errorf("Occurrences() = %v, want nil", got)
			}
		})
	}
}

func TestOccurrencesActiveTemplate(t *testing.T) {
	tpl := core.RecurringTemplate{
		Kind: core.KindIncome, Name: "Salary", Frequency: core.Monthly,
		AnchorDate: datePtr(2024, 5, 27), AutoCreate: true,
	}
	got := Occurrences(tpl, core.Month{Year: 2025, Month: 8})
	if len(got) != 1 || !got[0].Equal(date(2025, 8, 27)) {
		t.Errorf("Occurrences() = %v, want [2025-08-27]", got)
	}
}

func TestRuleForUnknownFrequency(t *testing.T) {
	if _, err := RuleFor("yearly"); err == nil {
		t.Error("expected error for unknown frequency")
	}
}
