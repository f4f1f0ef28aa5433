package notify

import (
	"context"

	"gobank/bank"
	"gobank/logging"
)

// LogObserver 以 Info 级别记录每条通知
type LogObserver struct {
	logger logging.Logger
}

// NewLogObserver logger 为 nil 时使用全局 Logger
func NewLogObserver(logger logging.Logger) *LogObserver {
	if logger == nil {
		logger = logging.GetLogger().WithFields(logging.String("component", "notify.log"))
	}
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnNotification(n bank.Notification) {
	o.logger.Info(context.Background(), n.Message,
		logging.Stringer("kind", n.Kind),
		logging.Int64("account_id", n.AccountID),
		logging.Stringer("amount", n.Amount),
	)
}
