package service

import (
	"context"

	"loan-engine/internal/domain"
	"loan-engine/pkg/logger"
)

// AccountingBridge receives every transaction whose derived state changed
// during an operation, so journal entries can be posted downstream. The core
// only promises to report which transactions changed; posting itself is a
// collaborator concern.
type AccountingBridge interface {
	PostChangedTransactions(ctx context.Context, loanID string, changed []*domain.Transaction) error
}

type loggingAccountingBridge struct{}

// NewLoggingAccountingBridge returns a bridge that records changed
// transaction ids in the structured log. Stands in until a real general
// ledger integration is attached.
func NewLoggingAccountingBridge() AccountingBridge {
	return &loggingAccountingBridge{}
}

func (b *loggingAccountingBridge) PostChangedTransactions(_ context.Context, loanID string, changed []*domain.Transaction) error {
	if len(changed) == 0 {
		return nil
	}
	ids := make([]string, 0, len(changed))
	reversed := make([]string, 0)
	for _, tx := range changed {
		ids = append(ids, tx.ID)
		if tx.Reversed {
			reversed = append(reversed, tx.ID)
		}
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"loan_id":         loanID,
		"transaction_ids": ids,
		"reversed_ids":    reversed,
		"changed_count":   len(ids),
	}).Info("Transactions changed, journal entries pending")
	return nil
}
