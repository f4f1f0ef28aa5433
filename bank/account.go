package bank

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// AccountType 账户类型，零值不是合法类型
type AccountType int

const (
	// AccountOrdinary 活期账户，不受天数限制
	AccountOrdinary AccountType = iota + 1
	// AccountDeposit 定期账户，存取与计息只在周期日进行
	AccountDeposit
)

func (t AccountType) String() string {
	switch t {
	case AccountOrdinary:
		return "ordinary"
	case AccountDeposit:
		return "deposit"
	default:
		return fmt.Sprintf("AccountType(%d)", int(t))
	}
}

// Valid 是否为可开户的类型
func (t AccountType) Valid() bool {
	return t == AccountOrdinary || t == AccountDeposit
}

// State 账户生命周期状态
type State int

const (
	StateCreated State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var hundred = decimal.NewFromInt(100)

// Account 银行账户
//
// 只能由 Bank 创建。活期与定期共用同一结构，差异集中在 eligible。
// 不是并发安全的。
type Account struct {
	id         int64
	typ        AccountType
	sum        decimal.Decimal
	percentage int
	days       int
	gate       int
	state      State
	channel    channel
}

func newAccount(id int64, typ AccountType, sum decimal.Decimal, percentage, gate int) *Account {
	return &Account{
		id:         id,
		typ:        typ,
		sum:        sum,
		percentage: percentage,
		gate:       gate,
		state:      StateCreated,
	}
}

func (a *Account) ID() int64                   { return a.id }
func (a *Account) Type() AccountType           { return a.typ }
func (a *Account) CurrentSum() decimal.Decimal { return a.sum }
func (a *Account) Percentage() int             { return a.percentage }
func (a *Account) Days() int                   { return a.days }
func (a *Account) State() State                { return a.state }

// Subscribe 为某一类通知追加订阅者，未知类型与 nil 订阅者被忽略
func (a *Account) Subscribe(kind Kind, obs ...Observer) {
	a.channel.subscribe(kind, obs...)
}

// Deposit 存入 amount
//
// 不校验符号，负数会直接减少余额。定期账户不在周期日时拒绝，
// 余额不变并发出金额为 0 的存入通知。
func (a *Account) Deposit(amount decimal.Decimal) {
	if !a.eligible() {
		a.notify(KindDeposited, fmt.Sprintf("Deposits are accepted only after a %d-day period", a.gate), decimal.Zero)
		return
	}
	a.sum = a.sum.Add(amount)
	a.notify(KindDeposited, fmt.Sprintf("Account %d received %s", a.id, amount), amount)
}

// Withdraw 取出 amount，返回实际取出的金额
//
// 余额不足或定期账户不在周期日时返回 0，并发出金额为 0 的取款通知。
// 拒绝不是错误，调用方需检查返回值。
func (a *Account) Withdraw(amount decimal.Decimal) decimal.Decimal {
	if !a.eligible() {
		a.notify(KindWithdrawn, fmt.Sprintf("Withdrawals are allowed only after a %d-day period", a.gate), decimal.Zero)
		return decimal.Zero
	}
	if amount.GreaterThan(a.sum) {
		a.notify(KindWithdrawn, fmt.Sprintf("Insufficient funds in account %d", a.id), decimal.Zero)
		return decimal.Zero
	}
	a.sum = a.sum.Sub(amount)
	a.notify(KindWithdrawn, fmt.Sprintf("Amount %s withdrawn from account %d", amount, a.id), amount)
	return amount
}

// eligible 定期账户只在天数为周期整数倍时（含第 0 天）允许操作
func (a *Account) eligible() bool {
	if a.typ != AccountDeposit || a.gate <= 0 {
		return true
	}
	return a.days%a.gate == 0
}

func (a *Account) open() {
	a.state = StateOpen
	var msg string
	switch a.typ {
	case AccountOrdinary:
		msg = fmt.Sprintf("New demand account opened. Account id: %d", a.id)
	default:
		msg = fmt.Sprintf("New deposit account opened. Account id: %d", a.id)
	}
	a.notify(KindOpened, msg, a.sum)
}

func (a *Account) close() {
	a.state = StateClosed
	a.notify(KindClosed, fmt.Sprintf("Account %d closed. Final balance: %s", a.id, a.sum), a.sum)
}

func (a *Account) incrementDay() {
	a.days++
}

// accrueInterest 按 sum*percentage/100 计息
// 定期账户不在周期日时静默跳过，不发通知（与存取的拒绝通知不同）
func (a *Account) accrueInterest() {
	if !a.eligible() {
		return
	}
	increment := a.sum.Mul(decimal.NewFromInt(int64(a.percentage))).Div(hundred)
	a.sum = a.sum.Add(increment)
	a.notify(KindInterestAccrued, fmt.Sprintf("Interest accrued: %s", increment), increment)
}

func (a *Account) notify(kind Kind, msg string, amount decimal.Decimal) {
	a.channel.emit(Notification{
		Kind:      kind,
		AccountID: a.id,
		Message:   msg,
		Amount:    amount,
	})
}
