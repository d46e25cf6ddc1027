// Package view renders the dashboard pages and the asynchronously loaded
// page regions (stats cards and the operations list).
package view

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/Nzyazin/bankflow/internal/core/models"
	"github.com/Nzyazin/bankflow/internal/core/stats"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	listDateLayout = "Jan 2, 2006 3:04 PM"
	cardDateLayout = "Jan 2, 2006"
)

// State of a data region. Queries are all-or-nothing, so there is no partial state.
type State string

const (
	StateLoading State = "loading"
	StateError   State = "error"
	StateEmpty   State = "empty"
	StateSuccess State = "success"
)

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

type Notice struct {
	Kind    NoticeKind
	Message string
}

type NavItem struct {
	Href   string
	Label  string
	Icon   string
	Active bool
}

func Nav(activePath string) []NavItem {
	items := []NavItem{
		{Href: "/", Label: "Home", Icon: "⌂"},
		{Href: "/actions", Label: "Actions", Icon: "+"},
	}
	for i := range items {
		items[i].Active = items[i].Href == activePath
	}
	return items
}

// TypeStyle is the icon, label and colour class for one operation type.
type TypeStyle struct {
	Label string
	Icon  string
	Class string
}

func StyleFor(t models.OperationType) TypeStyle {
	switch t {
	case models.OperationDeposit:
		return TypeStyle{Label: "Deposit", Icon: "↓", Class: "deposit"}
	case models.OperationWithdrawal:
		return TypeStyle{Label: "Withdrawal", Icon: "↑", Class: "withdrawal"}
	case models.OperationLoan:
		return TypeStyle{Label: "Loan", Icon: "🏛", Class: "loan"}
	default:
		return TypeStyle{Label: string(t), Icon: "$", Class: "unknown"}
	}
}

type OperationRow struct {
	ID            string
	AccountNumber string
	Amount        string
	Date          string
	ShortDate     string
	Style         TypeStyle
	LoanDetails   bool
	Interest      string
	Payments      string
}

func NewOperationRow(op models.Operation, loc *time.Location) OperationRow {
	row := OperationRow{
		ID:            op.ID.String(),
		AccountNumber: op.AccountNumber,
		Amount:        stats.FormatCurrency(op.Amount),
		Date:          op.CreatedAt.In(loc).Format(listDateLayout),
		ShortDate:     op.CreatedAt.In(loc).Format(cardDateLayout),
		Style:         StyleFor(op.OperationType),
		LoanDetails:   op.HasLoanDetails(),
	}
	if !row.LoanDetails {
		return row
	}
	if op.Interest != nil {
		row.Interest = op.Interest.String() + "% APR"
	}
	if op.Payments != nil {
		row.Payments = strconv.FormatInt(*op.Payments, 10) + " payments"
	}
	return row
}

type OperationsView struct {
	State      State
	Filter     string
	Rows       []OperationRow
	EmptyTitle string
	EmptyText  string
}

// NewOperationsView maps a finished list query to its render state. Empty
// results read differently depending on whether a search filter is active.
func NewOperationsView(ops []models.Operation, filter string, err error, loc *time.Location) OperationsView {
	v := OperationsView{Filter: filter}

	switch {
	case err != nil:
		v.State = StateError
	case len(ops) == 0 && filter != "":
		v.State = StateEmpty
		v.EmptyTitle = "No operations found"
		v.EmptyText = fmt.Sprintf("No operations found for account %q. Check the number or clear the search.", filter)
	case len(ops) == 0:
		v.State = StateEmpty
		v.EmptyTitle = "No operations yet"
		v.EmptyText = "Record your first operation on the Actions page."
	default:
		v.State = StateSuccess
		v.Rows = make([]OperationRow, 0, len(ops))
		for _, op := range ops {
			v.Rows = append(v.Rows, NewOperationRow(op, loc))
		}
	}
	return v
}

type StatsView struct {
	State       State
	Deposits    string
	Withdrawals string
	Loans       string
	Count       int
}

func NewStatsView(snapshot models.StatsSnapshot, err error) StatsView {
	if err != nil {
		return StatsView{State: StateError}
	}
	return StatsView{
		State:       StateSuccess,
		Deposits:    stats.FormatCompact(snapshot.TotalDeposits),
		Withdrawals: stats.FormatCompact(snapshot.TotalWithdrawals),
		Loans:       stats.FormatCompact(snapshot.TotalLoans),
		Count:       snapshot.OperationCount,
	}
}

type IndexPage struct {
	Nav    []NavItem
	Filter string
}

type ActionsPage struct {
	Nav    []NavItem
	Form   models.OperationForm
	Notice *Notice
}

// LoanVisible reports whether the loan inputs start expanded. Their values are
// always rendered so switching type away from loan and back keeps them.
func (p ActionsPage) LoanVisible() bool {
	return p.Form.OperationType == string(models.OperationLoan)
}

type OperationTypeOption struct {
	Value    string
	Style    TypeStyle
	Selected bool
}

func (p ActionsPage) TypeOptions() []OperationTypeOption {
	types := []models.OperationType{models.OperationDeposit, models.OperationWithdrawal, models.OperationLoan}
	opts := make([]OperationTypeOption, 0, len(types))
	for _, t := range types {
		opts = append(opts, OperationTypeOption{
			Value:    string(t),
			Style:    StyleFor(t),
			Selected: p.Form.OperationType == string(t),
		})
	}
	return opts
}

type Renderer struct {
	pages map[string]*template.Template
	loc   *time.Location
}

var pageFiles = map[string]string{
	"index":      "templates/index.html",
	"actions":    "templates/actions.html",
	"stats":      "templates/stats.html",
	"operations": "templates/operations.html",
}

func NewRenderer(loc *time.Location) (*Renderer, error) {
	if loc == nil {
		loc = time.UTC
	}

	base, err := template.New("base").ParseFS(templateFS, "templates/layout.html", "templates/partials.html")
	if err != nil {
		return nil, fmt.Errorf("parse base templates: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pageFiles)), loc: loc}
	for name, file := range pageFiles {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone base templates: %w", err)
		}
		if r.pages[name], err = clone.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
	}
	return r, nil
}

func (r *Renderer) Location() *time.Location { return r.loc }

func (r *Renderer) RenderIndex(w http.ResponseWriter, status int, page IndexPage) error {
	return r.render(w, status, "index", "layout", page)
}

func (r *Renderer) RenderActions(w http.ResponseWriter, status int, page ActionsPage) error {
	return r.render(w, status, "actions", "layout", page)
}

func (r *Renderer) RenderStats(w http.ResponseWriter, status int, v StatsView) error {
	return r.render(w, status, "stats", "stats", v)
}

func (r *Renderer) RenderOperations(w http.ResponseWriter, status int, v OperationsView) error {
	return r.render(w, status, "operations", "operations", v)
}

var errUnknownPage = errors.New("unknown page")

// render buffers the page so a failing template never reaches the client as
// a partial or empty 200; the client gets a 500 instead.
func (r *Renderer) render(w http.ResponseWriter, status int, page, entry string, data interface{}) error {
	t, ok := r.pages[page]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return fmt.Errorf("%w: %s", errUnknownPage, page)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, entry, data); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return fmt.Errorf("render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
