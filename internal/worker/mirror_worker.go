package worker

import (
	"context"
	"fmt"

	"tradejoy/internal/amqp"
	"tradejoy/internal/core"
	"tradejoy/internal/log"
	"tradejoy/internal/sheets"
)

// MirrorWorker copies ledger events into a spreadsheet.
type MirrorWorker struct {
	mirror sheets.Mirror
	logger *log.Logger
}

func NewMirrorWorker(mirror sheets.Mirror, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &MirrorWorker{
		mirror: mirror,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent applies one ledger event to the sheet. Returning an error makes
// the consumer requeue the message.
func (w *MirrorWorker) HandleEvent(ctx context.Context, msg *amqp.LedgerEvent) error {
	tx := msg.Transaction
	fields := log.NewFields().
		WithEvent(msg.ID, string(msg.Type)).
		WithTransaction(tx.ID, tx.Kind.String(), tx.Description, tx.Amount.Cents, string(tx.Category))

	switch msg.Type {
	case amqp.EventRecorded:
		ref, err := w.mirror.Append(ctx, tx)
		if err != nil {
			return fmt.Errorf("append transaction %d: %w", tx.ID, err)
		}
		fields[log.FieldSheetsRef] = ref
		w.logger.InfoContext(ctx, "Mirrored transaction", fields.WithOperation(log.OpAppend).ToSlice()...)
	case amqp.EventDeleted:
		if err := w.mirror.Delete(ctx, tx.ID); err != nil {
			return fmt.Errorf("delete transaction %d: %w", tx.ID, err)
		}
		w.logger.InfoContext(ctx, "Removed mirrored transaction", fields.WithOperation(log.OpDelete).ToSlice()...)
	default:
		return fmt.Errorf("%w: %q", amqp.ErrUnknownEventType, msg.Type)
	}
	return nil
}

// Backfill appends every transaction missing from the sheet. It recovers
// from events lost while the worker was down. Individual failures are logged
// and counted, not returned.
func (w *MirrorWorker) Backfill(ctx context.Context, txs []core.Transaction) (synced, failed int, err error) {
	present, err := w.mirror.IDs(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list mirrored ids: %w", err)
	}

	// oldest first so sheet rows follow ledger order
	for i := len(txs) - 1; i >= 0; i-- {
		tx := txs[i]
		if _, ok := present[tx.ID]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return synced, failed, err
		}
		if _, err := w.mirror.Append(ctx, tx); err != nil {
			w.logger.ErrorContext(ctx, "Failed to backfill transaction", log.FieldTxID, tx.ID, log.FieldError, err)
			failed++
			continue
		}
		synced++
	}

	w.logger.InfoContext(ctx, "Backfill completed",
		"total", len(txs),
		"synced", synced,
		"errors", failed,
		log.FieldOperation, log.OpSync)
	return synced, failed, nil
}
