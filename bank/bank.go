// Package bank 账户模型与管理账户集合的银行
//
// 账户的每次状态变化都通过通知同步送达订阅者。银行负责分配标识、
// 挂接订阅者、按插入顺序批量计息。整个包按单线程使用设计。
package bank

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"gobank/logging"
)

// Bank 按插入顺序保存账户的银行
//
// 不是并发安全的，并发使用时需由调用方为每个 Bank 加锁。
type Bank struct {
	name     string
	cfg      Config
	logger   logging.Logger
	accounts []*Account
	index    map[int64]*Account
}

// NewBank 校验配置后创建银行
func NewBank(name string, cfg Config) (*Bank, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults(name)
	return &Bank{
		name:     name,
		cfg:      cfg,
		logger:   cfg.Logger,
		accounts: make([]*Account, 0),
		index:    make(map[int64]*Account),
	}, nil
}

// New 同 NewBank，配置非法时 panic
func New(name string, cfg Config) *Bank {
	b, err := NewBank(name, cfg)
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Bank) Name() string { return b.name }

// Len 存活账户数
func (b *Bank) Len() int { return len(b.accounts) }

// Accounts 按开户顺序返回存活账户的副本
func (b *Bank) Accounts() []*Account {
	return slices.Clone(b.accounts)
}

// FindAccount 按 id 查找存活账户
func (b *Bank) FindAccount(id int64) (*Account, bool) {
	acc, ok := b.index[id]
	return acc, ok
}

// Open 开户
//
// 账户先加入集合并挂接订阅者，随后发出开户通知。类型无法识别、
// 与 Config.Variant 不符、标识分配失败或重复时返回 *AccountCreationError，
// 集合保持不变。
func (b *Bank) Open(typ AccountType, sum decimal.Decimal, obs Observers) (*Account, error) {
	ctx := context.Background()

	if !typ.Valid() {
		return nil, b.rejectCreation(ctx, &AccountCreationError{Type: typ, Reason: "unrecognized account type"})
	}
	if b.cfg.Variant != 0 && typ != b.cfg.Variant {
		return nil, b.rejectCreation(ctx, &AccountCreationError{
			Type:   typ,
			Reason: fmt.Sprintf("bank %q holds only %s accounts", b.name, b.cfg.Variant),
		})
	}

	id, err := b.cfg.IDs.NextID()
	if err != nil {
		return nil, b.rejectCreation(ctx, &AccountCreationError{Type: typ, Reason: "allocate account id", Cause: err})
	}
	if id <= 0 {
		return nil, b.rejectCreation(ctx, &AccountCreationError{Type: typ, Reason: fmt.Sprintf("non-positive account id %d", id)})
	}
	if _, exists := b.index[id]; exists {
		return nil, b.rejectCreation(ctx, &AccountCreationError{Type: typ, Reason: fmt.Sprintf("duplicate account id %d", id)})
	}

	acc := newAccount(id, typ, sum, b.cfg.rateFor(typ), b.cfg.GatePeriod)
	b.accounts = append(b.accounts, acc)
	b.index[id] = acc
	acc.channel.attach(obs)

	b.logger.Debug(ctx, "account opened",
		logging.Int64("account_id", id),
		logging.Stringer("type", typ),
		logging.Stringer("sum", sum),
		logging.Int("percentage", acc.percentage),
	)
	acc.open()
	return acc, nil
}

// Deposit 向 id 对应账户存款，账户自身的拒绝规则照常生效
func (b *Bank) Deposit(amount decimal.Decimal, id int64) error {
	acc, err := b.mustFind(id)
	if err != nil {
		return err
	}
	acc.Deposit(amount)
	return nil
}

// Withdraw 从 id 对应账户取款，返回实际取出金额（被拒绝时为 0）
func (b *Bank) Withdraw(amount decimal.Decimal, id int64) (decimal.Decimal, error) {
	acc, err := b.mustFind(id)
	if err != nil {
		return decimal.Zero, err
	}
	return acc.Withdraw(amount), nil
}

// Close 销户：发出销户通知后从集合移除，其余账户相对顺序不变
func (b *Bank) Close(id int64) error {
	acc, err := b.mustFind(id)
	if err != nil {
		return err
	}
	acc.close()

	if i := slices.Index(b.accounts, acc); i >= 0 {
		b.accounts = slices.Delete(b.accounts, i, i+1)
	}
	delete(b.index, id)

	b.logger.Debug(context.Background(), "account closed",
		logging.Int64("account_id", id),
		logging.Stringer("final_sum", acc.sum),
	)
	return nil
}

// AccruePeriodicInterest 推进一天：按开户顺序对每个账户先累加天数再计息
//
// 遍历的是批次开始时的快照。订阅者在批次中销户时，
// 被销户且尚未轮到的账户跳过，其余账户仍各计息一次。
func (b *Bank) AccruePeriodicInterest() {
	for _, acc := range slices.Clone(b.accounts) {
		if _, alive := b.index[acc.id]; !alive {
			continue
		}
		acc.incrementDay()
		acc.accrueInterest()
	}
	b.logger.Debug(context.Background(), "periodic interest accrued",
		logging.Int("accounts", len(b.accounts)),
	)
}

func (b *Bank) mustFind(id int64) (*Account, error) {
	acc, ok := b.index[id]
	if !ok {
		b.logger.Warn(context.Background(), "account not found", logging.Int64("account_id", id))
		return nil, &AccountNotFoundError{ID: id}
	}
	return acc, nil
}

func (b *Bank) rejectCreation(ctx context.Context, err *AccountCreationError) error {
	b.logger.Warn(ctx, "account creation rejected",
		logging.Stringer("type", err.Type),
		logging.String("reason", err.Reason),
	)
	return err
}
