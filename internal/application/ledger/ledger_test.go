package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/dexpilot/internal/application/ledger"
	"github.com/alejandrodnm/dexpilot/internal/domain"
)

var t0 = time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func TestApplyTrade_ProfitLockScenario(t *testing.T) {
	l := ledger.New(d("50.00"), t0, domain.ProfitLockConfig{Enabled: true, PercentagePoints: 20})

	locked := l.ApplyTrade(domain.Trade{ID: "t1", Profit: 5.00}, t0.Add(time.Minute))

	st := l.State()
	assert.True(t, d("1").Equal(locked))
	assert.True(t, d("55").Equal(st.Balance), st.Balance.String())
	assert.True(t, d("5").Equal(st.CumulativePnL))
	assert.True(t, d("1").Equal(st.LockedBalance))
	assert.True(t, d("1").Equal(st.TotalLocked))
	require.Len(t, st.History, 1)
	assert.Equal(t, "t1", st.History[0].TradeID)
}

func TestApplyTrade_LossNeverLocksAndMayGoNegative(t *testing.T) {
	l := ledger.New(d("10"), t0, domain.ProfitLockConfig{Enabled: true, PercentagePoints: 50})
	l.ApplyTrade(domain.Trade{ID: "t1", Profit: -12.5}, t0)

	st := l.State()
	assert.True(t, d("-2.5").Equal(st.Balance))
	assert.True(t, st.LockedBalance.IsZero())
	assert.Empty(t, st.History)
}

func TestApplyTrade_LockDisabled(t *testing.T) {
	l := ledger.New(d("10"), t0, domain.ProfitLockConfig{Enabled: false, PercentagePoints: 50})
	assert.True(t, l.ApplyTrade(domain.Trade{Profit: 4}, t0).IsZero())
	assert.True(t, l.State().TotalLocked.IsZero())
}

func TestApplyTrade_DailyReturn(t *testing.T) {
	l := ledger.New(d("100"), t0, domain.ProfitLockConfig{})

	// No time elapsed: no division by zero, the floor applies.
	l.ApplyTrade(domain.Trade{Profit: 1}, t0)
	assert.True(t, d("1").Equal(l.State().DailyReturnPercent), l.State().DailyReturnPercent.String())

	// Within the first day the divisor is still one day.
	l.ApplyTrade(domain.Trade{Profit: 2}, t0.Add(2*time.Hour))
	assert.True(t, d("3").Equal(l.State().DailyReturnPercent))

	l.ApplyTrade(domain.Trade{Profit: 3}, t0.Add(72*time.Hour))
	assert.True(t, d("2").Equal(l.State().DailyReturnPercent), l.State().DailyReturnPercent.String())
}

func TestWithdrawLock_RoundTrip(t *testing.T) {
	l := ledger.New(d("50"), t0, domain.ProfitLockConfig{Enabled: true, PercentagePoints: 20})
	l.ApplyTrade(domain.Trade{ID: "a", Profit: 10}, t0) // locks 2
	before := l.State()

	moved, err := l.WithdrawLock(d("0.5"))
	require.NoError(t, err)
	after := l.State()

	assert.True(t, d("0.5").Equal(moved))
	assert.True(t, before.LockedBalance.Sub(moved).Equal(after.LockedBalance))
	assert.True(t, before.Balance.Add(moved).Equal(after.Balance))
	assert.True(t, before.Balance.Add(before.LockedBalance).Equal(after.Balance.Add(after.LockedBalance)))
	assert.True(t, before.TotalLocked.Equal(after.TotalLocked), "withdrawals never reduce totalLocked")
	assert.True(t, after.LockedBalance.LessThanOrEqual(after.TotalLocked))
}

func TestWithdrawLock_CapsAtLocked(t *testing.T) {
	l := ledger.New(d("50"), t0, domain.ProfitLockConfig{Enabled: true, PercentagePoints: 20})
	l.ApplyTrade(domain.Trade{Profit: 10}, t0)

	moved, err := l.WithdrawLock(d("100"))
	require.NoError(t, err)
	assert.True(t, d("2").Equal(moved))
	assert.True(t, l.State().LockedBalance.IsZero())
	assert.True(t, d("62").Equal(l.State().Balance))
	assert.True(t, d("2").Equal(l.State().TotalWithdrawn))
}

func TestWithdrawLock_Rejects(t *testing.T) {
	l := ledger.New(d("50"), t0, domain.ProfitLockConfig{Enabled: true, PercentagePoints: 20})

	_, err := l.WithdrawLock(d("1"))
	assert.ErrorIs(t, err, domain.ErrValidation, "nothing locked")

	l.ApplyTrade(domain.Trade{Profit: 10}, t0)
	_, err = l.WithdrawLock(d("0"))
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = l.WithdrawLock(d("-1"))
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.True(t, d("2").Equal(l.State().LockedBalance))
}

func TestConfigure(t *testing.T) {
	l := ledger.New(d("50"), t0, domain.ProfitLockConfig{})

	require.NoError(t, l.Configure(ptr(30), ptr(true)))
	assert.Equal(t, domain.ProfitLockConfig{Enabled: true, PercentagePoints: 30}, l.ProfitLock())

	require.NoError(t, l.Configure(nil, ptr(false)))
	assert.Equal(t, domain.ProfitLockConfig{Enabled: false, PercentagePoints: 30}, l.ProfitLock())

	assert.ErrorIs(t, l.Configure(ptr(101), ptr(true)), domain.ErrValidation)
	assert.ErrorIs(t, l.Configure(ptr(-1), nil), domain.ErrValidation)
	assert.Equal(t, domain.ProfitLockConfig{Enabled: false, PercentagePoints: 30}, l.ProfitLock(), "rejected config leaves state unchanged")
}

func TestLockInvariantsHoldAcrossMixedActivity(t *testing.T) {
	l := ledger.New(d("50"), t0, domain.ProfitLockConfig{Enabled: true, PercentagePoints: 25})
	prevTotal := decimal.Zero
	profits := []float64{4, -2, 8, 0.4, -10, 12}
	for i, p := range profits {
		l.ApplyTrade(domain.Trade{Profit: p}, t0.Add(time.Duration(i)*time.Minute))
		if i%2 == 1 {
			_, _ = l.WithdrawLock(d("1.5"))
		}
		st := l.State()
		assert.True(t, st.LockedBalance.LessThanOrEqual(st.TotalLocked))
		assert.True(t, st.TotalLocked.GreaterThanOrEqual(prevTotal))
		prevTotal = st.TotalLocked
	}
}

func TestResetKeepsProfitLock(t *testing.T) {
	l := ledger.New(d("50"), t0, domain.ProfitLockConfig{Enabled: true, PercentagePoints: 20})
	l.ApplyTrade(domain.Trade{Profit: 5}, t0)
	l.Reset(d("50"), t0.Add(time.Hour))

	st := l.State()
	assert.True(t, d("50").Equal(st.Balance))
	assert.True(t, st.TotalLocked.IsZero())
	assert.Empty(t, st.History)
	assert.Equal(t, 20, l.ProfitLock().PercentagePoints)
}
