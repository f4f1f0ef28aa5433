package bank

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gobank/logging"
)

// recorder 记录收到的全部通知
type recorder struct {
	got []Notification
}

func (r *recorder) OnNotification(n Notification) {
	r.got = append(r.got, n)
}

func (r *recorder) ofKind(k Kind) []Notification {
	var out []Notification
	for _, n := range r.got {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertSum(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func newTestBank(t *testing.T, cfg Config) *Bank {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNoopLogger()
	}
	return New("test-bank", cfg)
}

func openWithRecorder(t *testing.T, b *Bank, typ AccountType, sum string) (*Account, *recorder) {
	t.Helper()
	rec := &recorder{}
	acc, err := b.Open(typ, dec(sum), ObserveAll(rec))
	require.NoError(t, err)
	return acc, rec
}
