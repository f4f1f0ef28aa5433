package notify

import (
	"context"
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"gobank/bank"
	appErrors "gobank/errors"
	"gobank/logging"
	"gobank/storage/database"
	"gobank/storage/database/basic"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// JournalConfig 审计日志配置
type JournalConfig struct {
	// Table 表名，默认 notification_journal
	Table string
	// Timeout 单次写入时限，默认 2s
	Timeout time.Duration
	// Now 记录时间来源，默认 time.Now
	Now func() time.Time

	Logger logging.Logger
}

// Entry 一条审计记录
type Entry struct {
	Seq        int64
	Kind       bank.Kind
	AccountID  int64
	Message    string
	Amount     decimal.Decimal
	RecordedAt time.Time
}

// Journal 只追加的通知审计表
//
// 只记录通知本身，账户状态不会从中恢复。写入失败记录日志并计数，不影响账户操作。
type Journal struct {
	db       database.IDatabase
	cfg      JournalConfig
	logger   logging.Logger
	failures atomic.Int64
}

// NewJournal 建表（如不存在）并返回审计日志
func NewJournal(ctx context.Context, db database.IDatabase, cfg JournalConfig) (*Journal, error) {
	if cfg.Table == "" {
		cfg.Table = "notification_journal"
	}
	if !tableName.MatchString(cfg.Table) {
		return nil, appErrors.NewError(appErrors.ErrCodeInvalidInput, "invalid journal table name").
			WithContext("table", cfg.Table)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetLogger().WithFields(logging.String("component", "notify.journal"))
	}

	j := &Journal{db: db, cfg: cfg, logger: cfg.Logger}
	if err := j.migrate(ctx); err != nil {
		return nil, appErrors.WrapDatabaseError(ctx, err, "create journal table")
	}
	return j, nil
}

func (j *Journal) migrate(ctx context.Context) error {
	return basic.InTx(ctx, j.db, func(tx database.ITransaction) error {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			account_id INTEGER NOT NULL,
			message TEXT NOT NULL,
			amount TEXT NOT NULL,
			recorded_at INTEGER NOT NULL
		)`, j.cfg.Table)
		if _, err := tx.Exec(ctx, ddl); err != nil {
			return err
		}
		idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_account ON %s (account_id, seq)`, j.cfg.Table, j.cfg.Table)
		_, err := tx.Exec(ctx, idx)
		return err
	})
}

func (j *Journal) OnNotification(n bank.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.Timeout)
	defer cancel()

	if err := j.Record(ctx, n); err != nil {
		j.failures.Add(1)
		j.logger.Error(ctx, "journal notification failed",
			logging.Stringer("kind", n.Kind),
			logging.Int64("account_id", n.AccountID),
			logging.Error(err),
		)
	}
}

// Record 写入一条通知
func (j *Journal) Record(ctx context.Context, n bank.Notification) error {
	query := fmt.Sprintf(`INSERT INTO %s (kind, account_id, message, amount, recorded_at) VALUES (?, ?, ?, ?, ?)`, j.cfg.Table)
	_, err := j.db.Exec(ctx, query, n.Kind.String(), n.AccountID, n.Message, n.Amount.String(), j.cfg.Now().UnixNano())
	return appErrors.WrapDatabaseError(ctx, err, "insert journal entry")
}

// Entries 按写入顺序返回某账户的记录，accountID 为 0 时返回全部
func (j *Journal) Entries(ctx context.Context, accountID int64) ([]Entry, error) {
	qb := basic.NewSelect("seq", "kind", "account_id", "message", "amount", "recorded_at").
		From(j.cfg.Table).
		OrderBy("seq", false)
	if accountID != 0 {
		qb.Where("account_id = ?", accountID)
	}
	query, args := qb.Build()

	rows, err := j.db.Query(ctx, query, args...)
	if err != nil {
		return nil, appErrors.WrapDatabaseError(ctx, err, "select journal entries")
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e        Entry
			kind     string
			amount   string
			recorded int64
		)
		if err := rows.Scan(&e.Seq, &kind, &e.AccountID, &e.Message, &amount, &recorded); err != nil {
			return nil, appErrors.WrapDatabaseError(ctx, err, "scan journal entry")
		}
		k, ok := bank.ParseKind(kind)
		if !ok {
			return nil, appErrors.NewError(appErrors.ErrCodeDatabase, "unknown kind in journal").WithContext("kind", kind)
		}
		e.Kind = k
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, appErrors.WrapDatabaseError(ctx, err, "parse journal amount")
		}
		e.RecordedAt = time.Unix(0, recorded)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, appErrors.WrapDatabaseError(ctx, err, "iterate journal entries")
	}
	return entries, nil
}

// Failures 写入失败次数
func (j *Journal) Failures() int64 { return j.failures.Load() }

// Close 关闭底层数据库
func (j *Journal) Close() error {
	return j.db.Close()
}
