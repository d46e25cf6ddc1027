package repository

import (
	"context"

	"github.com/Nzyazin/bankflow/internal/core/models"
)

type OperationRepository interface {
	// List returns rows ordered by created_at descending. An empty accountNumber
	// means no filter; otherwise only exact matches are returned.
	List(ctx context.Context, accountNumber string) ([]models.Operation, error)
	ListSummaryFields(ctx context.Context) ([]models.OperationSummary, error)
	Insert(ctx context.Context, op models.NewOperation) (*models.Operation, error)
	Ping(ctx context.Context) error
}
