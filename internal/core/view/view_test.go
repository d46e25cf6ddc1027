package view

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Nzyazin/bankflow/internal/core/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrDecimal(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func ptrInt64(n int64) *int64 { return &n }

var createdAt = time.Date(2026, 2, 14, 15, 30, 0, 0, time.UTC)

func TestStyleFor(t *testing.T) {
	assert.Equal(t, "Deposit", StyleFor(models.OperationDeposit).Label)
	assert.Equal(t, "withdrawal", StyleFor(models.OperationWithdrawal).Class)
	assert.Equal(t, "loan", StyleFor(models.OperationLoan).Class)

	fallback := StyleFor("refund")
	assert.Equal(t, "refund", fallback.Label)
	assert.Equal(t, "unknown", fallback.Class)
}

func TestNewOperationRow(t *testing.T) {
	t.Run("loan with details", func(t *testing.T) {
		row := NewOperationRow(models.Operation{
			ID:            uuid.New(),
			AccountNumber: "12345",
			OperationType: models.OperationLoan,
			Amount:        decimal.RequireFromString("15000"),
			Interest:      ptrDecimal("5.5"),
			Payments:      ptrInt64(36),
			CreatedAt:     createdAt,
		}, time.UTC)

		assert.True(t, row.LoanDetails)
		assert.Equal(t, "5.5% APR", row.Interest)
		assert.Equal(t, "36 payments", row.Payments)
		assert.Equal(t, "$15,000.00", row.Amount)
		assert.Equal(t, "Feb 14, 2026 3:30 PM", row.Date)
		assert.Equal(t, "Feb 14, 2026", row.ShortDate)
	})

	t.Run("loan fields on a deposit are ignored", func(t *testing.T) {
		row := NewOperationRow(models.Operation{
			OperationType: models.OperationDeposit,
			Amount:        decimal.NewFromInt(10),
			Interest:      ptrDecimal("3"),
			Payments:      ptrInt64(2),
			CreatedAt:     createdAt,
		}, time.UTC)

		assert.False(t, row.LoanDetails)
		assert.Empty(t, row.Interest)
		assert.Empty(t, row.Payments)
	})

	t.Run("loan without details", func(t *testing.T) {
		row := NewOperationRow(models.Operation{
			OperationType: models.OperationLoan,
			Amount:        decimal.NewFromInt(10),
			CreatedAt:     createdAt,
		}, time.UTC)
		assert.False(t, row.LoanDetails)
	})
}

func TestNewOperationsView(t *testing.T) {
	loc := time.UTC

	assert.Equal(t, StateError, NewOperationsView(nil, "", errors.New("down"), loc).State)

	unfiltered := NewOperationsView(nil, "", nil, loc)
	filtered := NewOperationsView([]models.Operation{}, "12345", nil, loc)
	assert.Equal(t, StateEmpty, unfiltered.State)
	assert.Equal(t, StateEmpty, filtered.State)
	assert.Equal(t, "No operations yet", unfiltered.EmptyTitle)
	assert.Equal(t, "No operations found", filtered.EmptyTitle)
	assert.Contains(t, filtered.EmptyText, `"12345"`)
	assert.NotEqual(t, unfiltered.EmptyText, filtered.EmptyText)

	success := NewOperationsView([]models.Operation{
		{OperationType: models.OperationDeposit, Amount: decimal.NewFromInt(1), CreatedAt: createdAt},
	}, "", nil, loc)
	assert.Equal(t, StateSuccess, success.State)
	assert.Len(t, success.Rows, 1)
}

func TestActionsPage(t *testing.T) {
	page := ActionsPage{Form: models.OperationForm{OperationType: "loan"}}
	assert.True(t, page.LoanVisible())

	page.Form.OperationType = "deposit"
	assert.False(t, page.LoanVisible())

	opts := page.TypeOptions()
	require.Len(t, opts, 3)
	assert.True(t, opts[0].Selected)
	assert.False(t, opts[2].Selected)
}

func TestNav(t *testing.T) {
	items := Nav("/actions")
	require.Len(t, items, 2)
	assert.False(t, items[0].Active)
	assert.True(t, items[1].Active)
}

func TestRendererTemplates(t *testing.T) {
	r, err := NewRenderer(nil)
	require.NoError(t, err)

	t.Run("index shows loading skeletons", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, r.RenderIndex(rec, http.StatusOK, IndexPage{Nav: Nav("/"), Filter: "42"}))

		body := rec.Body.String()
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, body, `data-state="loading"`)
		assert.Contains(t, body, `value="42"`)
		assert.Contains(t, body, `class="active"`)
		assert.Contains(t, body, `if (!resp.ok) { throw new Error(`)
	})

	t.Run("actions keeps hidden loan text", func(t *testing.T) {
		rec := httptest.NewRecorder()
		page := ActionsPage{
			Nav:    Nav("/actions"),
			Form:   models.OperationForm{AccountNumber: "9", OperationType: "deposit", Interest: "7"},
			Notice: &Notice{Kind: NoticeError, Message: "Please fill in all required fields"},
		}
		require.NoError(t, r.RenderActions(rec, http.StatusBadRequest, page))

		body := rec.Body.String()
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, body, `id="loan-details" hidden`)
		assert.Contains(t, body, `name="interest" inputmode="decimal" placeholder="5.5" value="7"`)
		assert.Contains(t, body, "Please fill in all required fields")
	})

	t.Run("operations escapes account numbers", func(t *testing.T) {
		rec := httptest.NewRecorder()
		v := NewOperationsView([]models.Operation{{
			AccountNumber: "<script>",
			OperationType: models.OperationWithdrawal,
			Amount:        decimal.NewFromInt(30),
			CreatedAt:     createdAt,
		}}, "", nil, time.UTC)
		require.NoError(t, r.RenderOperations(rec, http.StatusOK, v))

		body := rec.Body.String()
		assert.NotContains(t, body, "<script>")
		assert.Contains(t, body, "&lt;script&gt;")
		assert.Contains(t, body, "$30.00")
		assert.Equal(t, 2, strings.Count(body, "Withdrawal"))
	})

	t.Run("stats error state", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, r.RenderStats(rec, http.StatusOK, NewStatsView(models.StatsSnapshot{}, errors.New("x"))))
		assert.Contains(t, rec.Body.String(), `data-state="error"`)
	})

	t.Run("failed template answers 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := r.render(rec, http.StatusOK, "stats", "stats", 42)
		require.Error(t, err)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), `data-state`)
	})

	t.Run("unknown page answers 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		err := r.render(rec, http.StatusOK, "missing", "missing", nil)
		assert.ErrorIs(t, err, errUnknownPage)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
