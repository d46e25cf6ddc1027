package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Nzyazin/bankflow/internal/core/events"
	"github.com/Nzyazin/bankflow/internal/core/logger"
	"github.com/Nzyazin/bankflow/internal/core/models"
	"github.com/Nzyazin/bankflow/internal/core/querycache"
	"github.com/Nzyazin/bankflow/internal/core/repository"
	"github.com/Nzyazin/bankflow/internal/core/stats"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// Query keys. Every read of account_operations lives under operationsKeyPrefix
// so a single Invalidate after an insert covers filtered lists too.
const (
	operationsKeyPrefix = "operations"
	summaryKey          = operationsKeyPrefix + "/summary"
)

func listKey(accountNumber string) string {
	return operationsKeyPrefix + "/list?account=" + accountNumber
}

var (
	amountRegexp   = regexp.MustCompile(`^\d{1,12}(\.\d{1,2})?$`)
	interestRegexp = regexp.MustCompile(`^\d{1,5}(\.\d{1,4})?$`)
)

type OperationsUsecase interface {
	ListOperations(ctx context.Context, accountNumber string) ([]models.Operation, error)
	ListOperationSummaryFields(ctx context.Context) ([]models.OperationSummary, error)
	Stats(ctx context.Context) (models.StatsSnapshot, error)
	CreateOperation(ctx context.Context, form models.OperationForm) (*models.Operation, error)
	Ping(ctx context.Context) error
}

type operationsUsecase struct {
	repo      repository.OperationRepository
	cache     *querycache.Cache
	publisher events.Publisher
	log       logger.Logger

	recorded *prometheus.CounterVec
}

func NewOperationsUsecase(
	repo repository.OperationRepository,
	cache *querycache.Cache,
	publisher events.Publisher,
	reg prometheus.Registerer,
	log logger.Logger,
) OperationsUsecase {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &operationsUsecase{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		log:       log,
		recorded: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "bankflow_operations_recorded_total",
			Help: "Operations recorded through the dashboard, by type.",
		}, []string{"operation_type"}),
	}
}

func (uc *operationsUsecase) ListOperations(ctx context.Context, accountNumber string) ([]models.Operation, error) {
	accountNumber = strings.TrimSpace(accountNumber)

	ops, err := querycache.Fetch(ctx, uc.cache, listKey(accountNumber), func(ctx context.Context) ([]models.Operation, error) {
		return uc.repo.List(ctx, accountNumber)
	})
	if err != nil {
		uc.log.Error("Operations lookup failed",
			logger.StringField("account_number", accountNumber),
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return ops, nil
}

func (uc *operationsUsecase) ListOperationSummaryFields(ctx context.Context) ([]models.OperationSummary, error) {
	summaries, err := querycache.Fetch(ctx, uc.cache, summaryKey, uc.repo.ListSummaryFields)
	if err != nil {
		uc.log.Error("Operation summaries lookup failed", logger.ErrorField("error", err))
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	return summaries, nil
}

func (uc *operationsUsecase) Stats(ctx context.Context) (models.StatsSnapshot, error) {
	summaries, err := uc.ListOperationSummaryFields(ctx)
	if err != nil {
		return models.StatsSnapshot{}, err
	}
	return stats.Compute(summaries), nil
}

func (uc *operationsUsecase) CreateOperation(ctx context.Context, form models.OperationForm) (*models.Operation, error) {
	uc.logStart(form)

	op, verr := uc.buildOperation(form)
	if verr != nil {
		uc.log.Warn(verr.Message, verr.Fields...)
		return nil, verr
	}

	created, err := uc.repo.Insert(ctx, op)
	if err != nil {
		return nil, &InsertError{Message: storeMessage(err), Err: err}
	}

	uc.recorded.WithLabelValues(string(created.OperationType)).Inc()
	uc.invalidateReads(ctx)
	uc.publish(ctx, *created)

	uc.log.Info("Operation recorded",
		logger.StringField("id", created.ID.String()),
		logger.StringField("account_number", created.AccountNumber),
		logger.StringField("operation_type", string(created.OperationType)),
		logger.StringField("amount", created.Amount.String()))

	return created, nil
}

func (uc *operationsUsecase) Ping(ctx context.Context) error {
	return uc.repo.Ping(ctx)
}

func (uc *operationsUsecase) logStart(form models.OperationForm) {
	uc.log.Info("Starting operation",
		logger.StringField("account_number", form.AccountNumber),
		logger.StringField("type", form.OperationType),
		logger.StringField("amount", form.Amount))
}

// buildOperation turns raw form strings into an insert payload. Loan fields are
// read only for loans; for other types any leftover text is ignored.
func (uc *operationsUsecase) buildOperation(form models.OperationForm) (models.NewOperation, *ValidationError) {
	account := strings.TrimSpace(form.AccountNumber)
	amountStr := strings.TrimSpace(form.Amount)
	if account == "" || amountStr == "" {
		return models.NewOperation{}, &ValidationError{
			Message: msgRequiredFields,
			Fields: []logger.Field{
				logger.StringField("account_number", form.AccountNumber),
				logger.StringField("amount", form.Amount),
			},
		}
	}

	opType := models.OperationType(strings.ToLower(strings.TrimSpace(form.OperationType)))
	if opType == "" {
		opType = models.OperationDeposit
	}
	if !opType.Valid() {
		return models.NewOperation{}, &ValidationError{
			Message: "Invalid operation type",
			Fields:  []logger.Field{logger.StringField("operation_type", form.OperationType)},
		}
	}

	amount, err := parseAmount(amountStr)
	if err != nil {
		return models.NewOperation{}, &ValidationError{
			Message: err.Error(),
			Fields:  []logger.Field{logger.StringField("amount", form.Amount)},
		}
	}

	op := models.NewOperation{
		AccountNumber: account,
		OperationType: opType,
		Amount:        amount,
	}
	if opType != models.OperationLoan {
		return op, nil
	}

	if s := strings.TrimSpace(form.Interest); s != "" {
		interest, err := parseInterest(s)
		if err != nil {
			return models.NewOperation{}, &ValidationError{
				Message: err.Error(),
				Fields:  []logger.Field{logger.StringField("interest", form.Interest)},
			}
		}
		op.Interest = &interest
	}

	if s := strings.TrimSpace(form.Payments); s != "" {
		payments, err := parsePayments(s)
		if err != nil {
			return models.NewOperation{}, &ValidationError{
				Message: err.Error(),
				Fields:  []logger.Field{logger.StringField("payments", form.Payments)},
			}
		}
		op.Payments = &payments
	}

	return op, nil
}

// invalidateReads marks every operations query stale and re-runs the two
// unfiltered reads so the next page render is already warm.
func (uc *operationsUsecase) invalidateReads(ctx context.Context) {
	uc.cache.Invalidate(operationsKeyPrefix)

	if _, err := uc.ListOperations(ctx, ""); err != nil {
		uc.log.Warn("Refetch of operations after insert failed", logger.ErrorField("error", err))
	}
	if _, err := uc.ListOperationSummaryFields(ctx); err != nil {
		uc.log.Warn("Refetch of operation summaries after insert failed", logger.ErrorField("error", err))
	}
}

func (uc *operationsUsecase) publish(ctx context.Context, op models.Operation) {
	if err := uc.publisher.PublishOperationRecorded(ctx, op); err != nil {
		uc.log.Warn("Failed to publish operation event",
			logger.StringField("id", op.ID.String()),
			logger.ErrorField("error", err))
	}
}

func normalizeNumber(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, " ", ""), ",", ".")
}

func parseAmount(amountStr string) (decimal.Decimal, error) {
	cleaned := normalizeNumber(amountStr)
	if !amountRegexp.MatchString(cleaned) {
		return decimal.Zero, fmt.Errorf("invalid amount format: %s", amountStr)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("could not parse amount: %v", err)
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}

	return amount, nil
}

func parseInterest(s string) (decimal.Decimal, error) {
	cleaned := normalizeNumber(s)
	if !interestRegexp.MatchString(cleaned) {
		return decimal.Zero, fmt.Errorf("invalid interest rate: %s", s)
	}
	return decimal.NewFromString(cleaned)
}

func parsePayments(s string) (int64, error) {
	payments, err := strconv.ParseInt(normalizeNumber(s), 10, 32)
	if err != nil || payments <= 0 {
		return 0, fmt.Errorf("number of payments must be a positive whole number")
	}
	return payments, nil
}

// storeMessage returns the innermost error text, which is what the store said.
func storeMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
