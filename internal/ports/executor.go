package ports

import (
	"context"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

// TxExecutor hands a prepared quote to the external wallet signer, which
// builds, signs and submits the transaction. The core never signs.
type TxExecutor interface {
	Execute(ctx context.Context, identity string, quote domain.Quote) (domain.ExecutionResult, error)
}
