package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// CommandType names a command accepted by the session controller.
type CommandType string

const (
	CommandStart               CommandType = "start"
	CommandStop                CommandType = "stop"
	CommandConfigureProfitLock CommandType = "configure_profit_lock"
	CommandWithdrawLock        CommandType = "withdraw_lock"
	CommandIngestTradeResult   CommandType = "ingest_trade_result"
	CommandConfigureScorer     CommandType = "configure_scorer"
)

// Command is the closed set of externally triggered session commands.
type Command interface {
	Type() CommandType
	isCommand()
}

// StartCommand starts a demo or live session.
type StartCommand struct {
	Mode     Mode   `json:"mode"`
	Identity string `json:"identity,omitempty"`
}

// StopCommand stops the running session.
type StopCommand struct{}

// ConfigureProfitLockCommand updates the profit lock. Nil fields are left
// unchanged.
type ConfigureProfitLockCommand struct {
	PercentagePoints *int  `json:"percentagePoints,omitempty"`
	Enabled          *bool `json:"enabled,omitempty"`
}

// WithdrawLockCommand moves locked profit back into the balance.
type WithdrawLockCommand struct {
	Amount decimal.Decimal `json:"amount"`
}

// IngestTradeResultCommand reports the outcome of a pending live trade.
type IngestTradeResultCommand struct {
	TradeID string       `json:"tradeId"`
	Outcome TradeOutcome `json:"outcome"`
}

func (StartCommand) Type() CommandType               { return CommandStart }
func (StopCommand) Type() CommandType                { return CommandStop }
func (ConfigureProfitLockCommand) Type() CommandType { return CommandConfigureProfitLock }
func (WithdrawLockCommand) Type() CommandType        { return CommandWithdrawLock }
func (IngestTradeResultCommand) Type() CommandType   { return CommandIngestTradeResult }
func (ConfigureScorerCommand) Type() CommandType     { return CommandConfigureScorer }

func (StartCommand) isCommand()               {}
func (StopCommand) isCommand()                {}
func (ConfigureProfitLockCommand) isCommand() {}
func (WithdrawLockCommand) isCommand()        {}
func (IngestTradeResultCommand) isCommand()   {}
func (ConfigureScorerCommand) isCommand()     {}

// ConfigureScorerCommand switches scorer predictions on or off.
type ConfigureScorerCommand struct {
	Enabled bool `json:"enabled"`
}

// CommandEnvelope is the wire form of a command.
type CommandEnvelope struct {
	Type CommandType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// DecodeCommand parses a JSON command envelope into a typed command.
func DecodeCommand(raw []byte) (Command, error) {
	var env CommandEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("domain.DecodeCommand: envelope: %v: %w", err, ErrValidation)
	}

	var cmd Command
	switch env.Type {
	case CommandStart:
		var c StartCommand
		if err := decodeData(env.Data, &c); err != nil {
			return nil, err
		}
		if _, err := ParseMode(string(c.Mode)); err != nil {
			return nil, err
		}
		cmd = c
	case CommandStop:
		cmd = StopCommand{}
	case CommandConfigureProfitLock:
		var c ConfigureProfitLockCommand
		if err := decodeData(env.Data, &c); err != nil {
			return nil, err
		}
		cmd = c
	case CommandWithdrawLock:
		var c WithdrawLockCommand
		if err := decodeData(env.Data, &c); err != nil {
			return nil, err
		}
		cmd = c
	case CommandIngestTradeResult:
		var c IngestTradeResultCommand
		if err := decodeData(env.Data, &c); err != nil {
			return nil, err
		}
		if c.TradeID == "" {
			return nil, fmt.Errorf("domain.DecodeCommand: ingest_trade_result without tradeId: %w", ErrValidation)
		}
		cmd = c
	case CommandConfigureScorer:
		var c ConfigureScorerCommand
		if len(env.Data) == 0 {
			return nil, fmt.Errorf("domain.DecodeCommand: configure_scorer without data: %w", ErrValidation)
		}
		if err := decodeData(env.Data, &c); err != nil {
			return nil, err
		}
		cmd = c
	default:
		return nil, fmt.Errorf("domain.DecodeCommand: unknown command %q: %w", env.Type, ErrValidation)
	}
	return cmd, nil
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("domain.DecodeCommand: data: %v: %w", err, ErrValidation)
	}
	return nil
}
