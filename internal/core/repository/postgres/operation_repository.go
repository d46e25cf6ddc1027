package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Nzyazin/bankflow/internal/core/logger"
	"github.com/Nzyazin/bankflow/internal/core/models"
	"github.com/Nzyazin/bankflow/internal/core/repository"
	"github.com/jmoiron/sqlx"
)

const operationColumns = `id, account_number, operation_type, amount, interest, payments, created_at`

type postgresOperationRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresOperationRepo(db *sqlx.DB, log logger.Logger) repository.OperationRepository {
	return &postgresOperationRepo{
		db:  db,
		log: log,
	}
}

func (r *postgresOperationRepo) List(ctx context.Context, accountNumber string) ([]models.Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM account_operations`
	var args []interface{}

	if accountNumber = strings.TrimSpace(accountNumber); accountNumber != "" {
		query += ` WHERE account_number = $1`
		args = append(args, accountNumber)
	}
	query += ` ORDER BY created_at DESC`

	operations := []models.Operation{}
	if err := r.db.SelectContext(ctx, &operations, query, args...); err != nil {
		r.log.Error("Error listing operations",
			logger.StringField("account_number", accountNumber),
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("list operations: %w", err)
	}

	return operations, nil
}

func (r *postgresOperationRepo) ListSummaryFields(ctx context.Context) ([]models.OperationSummary, error) {
	const query = `SELECT operation_type, amount FROM account_operations`

	summaries := []models.OperationSummary{}
	if err := r.db.SelectContext(ctx, &summaries, query); err != nil {
		r.log.Error("Error listing operation summaries", logger.ErrorField("error", err))
		return nil, fmt.Errorf("list operation summaries: %w", err)
	}

	return summaries, nil
}

func (r *postgresOperationRepo) Insert(ctx context.Context, op models.NewOperation) (*models.Operation, error) {
	const query = `INSERT INTO account_operations
        (account_number, operation_type, amount, interest, payments)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING ` + operationColumns

	var created models.Operation
	err := r.db.GetContext(ctx, &created, query,
		op.AccountNumber,
		op.OperationType,
		op.Amount,
		op.Interest,
		op.Payments,
	)
	if err != nil {
		r.log.Error("Error inserting operation",
			logger.StringField("account_number", op.AccountNumber),
			logger.StringField("operation_type", string(op.OperationType)),
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("insert operation: %w", err)
	}

	return &created, nil
}

func (r *postgresOperationRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
