package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationType определяет тип операции по счёту
type OperationType string

const (
	OperationDeposit    OperationType = "deposit"
	OperationWithdrawal OperationType = "withdrawal"
	OperationLoan       OperationType = "loan"
)

func (t OperationType) Valid() bool {
	switch t {
	case OperationDeposit, OperationWithdrawal, OperationLoan:
		return true
	}
	return false
}

// Operation is one row of account_operations.
// Interest and Payments are nil unless the store holds a value; display code
// only honours them for loans.
type Operation struct {
	ID            uuid.UUID        `json:"id" db:"id"`
	AccountNumber string           `json:"account_number" db:"account_number"`
	OperationType OperationType    `json:"operation_type" db:"operation_type"`
	Amount        decimal.Decimal  `json:"amount" db:"amount"`
	Interest      *decimal.Decimal `json:"interest" db:"interest"`
	Payments      *int64           `json:"payments" db:"payments"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
}

// HasLoanDetails reports whether the row should show its loan detail region.
func (o Operation) HasLoanDetails() bool {
	return o.OperationType == OperationLoan && (o.Interest != nil || o.Payments != nil)
}

// OperationSummary is the (operation_type, amount) projection used for stats.
type OperationSummary struct {
	OperationType OperationType   `json:"operation_type" db:"operation_type"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
}

// NewOperation is the insert payload. ID and CreatedAt are assigned by the store.
type NewOperation struct {
	AccountNumber string
	OperationType OperationType
	Amount        decimal.Decimal
	Interest      *decimal.Decimal
	Payments      *int64
}

// OperationForm holds raw form input, one string per editable field.
type OperationForm struct {
	AccountNumber string `json:"account_number"`
	OperationType string `json:"operation_type"`
	Amount        string `json:"amount"`
	Interest      string `json:"interest"`
	Payments      string `json:"payments"`
}

func DefaultOperationForm() OperationForm {
	return OperationForm{OperationType: string(OperationDeposit)}
}

// StatsSnapshot агрегаты по текущему набору операций, не сохраняется
type StatsSnapshot struct {
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`
	TotalLoans       decimal.Decimal `json:"total_loans"`
	OperationCount   int             `json:"operation_count"`
}
