package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"auction-ledger/internal/domain"
	"auction-ledger/pkg/logger"
)

// TransferJournal records payouts for the payment processor. A batch is written in one
// transaction, so the ledger sees either every payout of the batch or none of them.
type TransferJournal struct {
	db  *sql.DB
	log logger.Logger
}

func NewTransferJournal(db *sql.DB, log logger.Logger) *TransferJournal {
	return &TransferJournal{db: db, log: log}
}

func (j *TransferJournal) Transfer(ctx context.Context, transfers []domain.Transfer) (err error) {
	if err := validateBatch(transfers); err != nil {
		return err
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer batch: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				j.log.Error("Failed to roll back transfer batch", "error", rbErr)
			}
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO ledger_transfers (id, recipient, amount, reason, status, created_at)
        VALUES (?, ?, ?, ?, 'pending', ?)
    `)
	if err != nil {
		return fmt.Errorf("prepare transfer insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, t := range transfers {
		if _, err = stmt.ExecContext(ctx, t.ID, string(t.Recipient), int64(t.Amount), string(t.Reason), now); err != nil {
			return fmt.Errorf("journal transfer %s: %w", t.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transfer batch: %w", err)
	}

	j.log.Info("Transfers journaled", "count", len(transfers))
	return nil
}

// GetTransfers lists journaled payouts in insertion order.
func (j *TransferJournal) GetTransfers(ctx context.Context) ([]domain.Transfer, error) {
	rows, err := j.db.QueryContext(ctx, `
        SELECT id, recipient, amount, reason
        FROM ledger_transfers
        ORDER BY created_at ASC, seq ASC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		var t domain.Transfer
		var recipient, reason string
		var amount int64

		if err := rows.Scan(&t.ID, &recipient, &amount, &reason); err != nil {
			return nil, err
		}

		t.Recipient = domain.Bidder(recipient)
		t.Amount = domain.Money(amount)
		t.Reason = domain.TransferReason(reason)
		transfers = append(transfers, t)
	}

	return transfers, rows.Err()
}

func validateBatch(transfers []domain.Transfer) error {
	if len(transfers) == 0 {
		return fmt.Errorf("empty transfer batch")
	}
	for _, t := range transfers {
		if t.ID == "" || t.Recipient == "" {
			return fmt.Errorf("transfer is missing id or recipient")
		}
		if t.Amount <= 0 {
			return fmt.Errorf("transfer %s has non-positive amount %d", t.ID, t.Amount)
		}
	}
	return nil
}
