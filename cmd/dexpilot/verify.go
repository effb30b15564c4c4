package main

import (
	"context"
	"log/slog"

	"github.com/alejandrodnm/dexpilot/internal/adapters/notify"
	"github.com/alejandrodnm/dexpilot/internal/application/engine/demo"
)

func runVerify(ctx context.Context, drafts *demo.Engine, notifier *notify.Console) {
	slog.Info("=== VERIFY MODE: round-trip quotes for every asset ===")
	notifier.PrintTradeability(drafts.VerifyUniverse(ctx))
}
