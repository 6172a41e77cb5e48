package sheets

import (
	"context"

	"tradejoy/internal/core"
)

//go:generate mockgen -source=ports.go -destination=mocks/mock_sheets.go

// Ports for outbound adapters.
type (
	// TransactionWriter appends a transaction row. Appending an id that is
	// already present returns the existing row reference.
	TransactionWriter interface {
		Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}

	// TransactionDeleter clears the row holding a transaction id. Unknown ids
	// are not an error.
	TransactionDeleter interface {
		Delete(ctx context.Context, id int64) error
	}

	// IDLister returns the transaction ids currently mirrored.
	IDLister interface {
		IDs(ctx context.Context) (map[int64]struct{}, error)
	}

	// Mirror is a spreadsheet copy of the ledger.
	Mirror interface {
		TransactionWriter
		TransactionDeleter
		IDLister
	}
)
