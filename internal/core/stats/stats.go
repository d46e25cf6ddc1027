package stats

import (
	"github.com/Nzyazin/bankflow/internal/core/models"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	printer  = message.NewPrinter(language.AmericanEnglish)
)

// Compute sums amounts by operation type. Rows with an unknown type only
// count toward OperationCount.
func Compute(summaries []models.OperationSummary) models.StatsSnapshot {
	snapshot := models.StatsSnapshot{
		TotalDeposits:    decimal.Zero,
		TotalWithdrawals: decimal.Zero,
		TotalLoans:       decimal.Zero,
		OperationCount:   len(summaries),
	}

	for _, s := range summaries {
		switch s.OperationType {
		case models.OperationDeposit:
			snapshot.TotalDeposits = snapshot.TotalDeposits.Add(s.Amount)
		case models.OperationWithdrawal:
			snapshot.TotalWithdrawals = snapshot.TotalWithdrawals.Add(s.Amount)
		case models.OperationLoan:
			snapshot.TotalLoans = snapshot.TotalLoans.Add(s.Amount)
		}
	}

	return snapshot
}

// FormatCompact renders card totals: $1.2M, $3.4K, or whole dollars below a thousand.
func FormatCompact(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	// Suffix is picked after rounding so 999.5 becomes $1.0K, not $1000.
	whole := amount.Round(0)
	if whole.LessThan(thousand) {
		return sign + "$" + printer.Sprintf("%d", whole.IntPart())
	}
	if k := amount.Div(thousand).Round(1); k.LessThan(thousand) {
		return sign + "$" + k.StringFixed(1) + "K"
	}
	return sign + "$" + amount.Div(million).StringFixed(1) + "M"
}

// FormatCurrency renders a full en-US dollar amount with grouping, e.g. $1,234.50.
func FormatCurrency(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	whole := amount.Truncate(0)
	cents := amount.Sub(whole).Mul(decimal.NewFromInt(100)).Round(0)
	if cents.Equal(decimal.NewFromInt(100)) {
		whole = whole.Add(decimal.NewFromInt(1))
		cents = decimal.Zero
	}

	return sign + "$" + printer.Sprintf("%d", whole.IntPart()) + "." + leftPad2(cents.IntPart())
}

func leftPad2(n int64) string {
	if n < 10 {
		return printer.Sprintf("0%d", n)
	}
	return printer.Sprintf("%d", n)
}
