package bank

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// Kind 通知类型
type Kind int

const (
	KindOpened Kind = iota + 1
	KindDeposited
	KindWithdrawn
	KindInterestAccrued
	KindClosed
)

const kindCount = int(KindClosed)

var kindNames = [...]string{
	KindOpened:          "account.opened",
	KindDeposited:       "account.deposited",
	KindWithdrawn:       "account.withdrawn",
	KindInterestAccrued: "account.interest_accrued",
	KindClosed:          "account.closed",
}

// String 返回通知类型名，同时用作消息类型
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid 是否为已知的通知类型
func (k Kind) Valid() bool {
	return k >= KindOpened && k <= KindClosed
}

// Kinds 按固定顺序返回全部通知类型
func Kinds() []Kind {
	return []Kind{KindOpened, KindDeposited, KindWithdrawn, KindInterestAccrued, KindClosed}
}

// ParseKind 解析 String() 的输出
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds() {
		if kindNames[k] == s {
			return k, true
		}
	}
	return 0, false
}

// Notification 一次状态变化的通知，每次触发时新建，不被账户保存
type Notification struct {
	Kind      Kind
	AccountID int64
	Message   string
	Amount    decimal.Decimal
}

// Observer 通知接收者
//
// 在触发通知的调用方 goroutine 上同步执行，返回后账户操作才继续。
// Observer 内部的 panic 不会被恢复。
type Observer interface {
	OnNotification(n Notification)
}

// ObserverFunc 函数适配器
type ObserverFunc func(n Notification)

func (f ObserverFunc) OnNotification(n Notification) { f(n) }

// Observers 开户时按通知类型提供的订阅者集合
type Observers struct {
	Opened          []Observer
	Deposited       []Observer
	Withdrawn       []Observer
	InterestAccrued []Observer
	Closed          []Observer
}

// ObserveAll 让同一组订阅者接收全部五类通知
func ObserveAll(obs ...Observer) Observers {
	return Observers{
		Opened:          slices.Clone(obs),
		Deposited:       slices.Clone(obs),
		Withdrawn:       slices.Clone(obs),
		InterestAccrued: slices.Clone(obs),
		Closed:          slices.Clone(obs),
	}
}

func (o Observers) forKind(k Kind) []Observer {
	switch k {
	case KindOpened:
		return o.Opened
	case KindDeposited:
		return o.Deposited
	case KindWithdrawn:
		return o.Withdrawn
	case KindInterestAccrued:
		return o.InterestAccrued
	case KindClosed:
		return o.Closed
	default:
		return nil
	}
}

// channel 五个独立的订阅点
type channel struct {
	subscribers [kindCount][]Observer
}

func (c *channel) subscribe(k Kind, obs ...Observer) {
	if !k.Valid() {
		return
	}
	for _, o := range obs {
		if o == nil {
			continue
		}
		c.subscribers[k-1] = append(c.subscribers[k-1], o)
	}
}

func (c *channel) attach(obs Observers) {
	for _, k := range Kinds() {
		c.subscribe(k, obs.forKind(k)...)
	}
}

func (c *channel) emit(n Notification) {
	for _, o := range c.subscribers[n.Kind-1] {
		o.OnNotification(n)
	}
}
