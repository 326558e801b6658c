package core

// BankMatchToleranceCents is the fixed "close enough" tolerance for bank
// balance reconciliation: 50 currency units. It deliberately does not
// scale with income size.
const BankMatchToleranceCents = 5000

// MonthSummary is the derived financial picture of one MonthlyBudget.
// Every field except TotalIncome is recomputed on each read.
type MonthSummary struct {
	Month             Month
	TotalIncome       Money  // stored on the budget, maintained by income mutations
	ExpectedIncome    Money  // live: template occurrences x estimated amounts
	TotalAllotted     Money  // sum of expense allotments
	TotalSpent        Money  // sum of payment sums across expenses
	RemainingToAssign Money  // TotalIncome - TotalAllotted, may be negative
	Unassigned        Money  // RemainingToAssign clamped at zero
	FlexFund          Money
	BankBalance       *Money // nil when never entered
	BankDifference    *Money // nil when no bank balance is recorded
	BankMatch         bool
}
