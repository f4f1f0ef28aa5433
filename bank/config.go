package bank

import (
	"fmt"

	appErrors "gobank/errors"
	"gobank/idgen"
	"gobank/logging"
)

const (
	DefaultDemandRate  = 1
	DefaultDepositRate = 40
	DefaultGatePeriod  = 30
)

// Config 银行配置，零值字段在 New 中填充默认值
type Config struct {
	// DemandRate 活期年利率（百分比），nil 时为 DefaultDemandRate，可为 0
	DemandRate *int
	// DepositRate 定期利率（百分比），nil 时为 DefaultDepositRate，可为 0
	DepositRate *int
	// GatePeriod 定期账户的存取周期（天），0 时为 DefaultGatePeriod
	GatePeriod int

	// Variant 非零时银行只接受该类型的账户
	Variant AccountType

	// IDs 账户标识分配器，默认每个银行独立的 idgen.Sequence（从 1 开始）
	// 多个银行共享同一分配器时标识在它们之间也唯一
	IDs idgen.Generator

	Logger logging.Logger
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		DemandRate:  Rate(DefaultDemandRate),
		DepositRate: Rate(DefaultDepositRate),
		GatePeriod:  DefaultGatePeriod,
	}
}

// Rate 用于填写 Config 中的利率
func Rate(percent int) *int { return &percent }

// Validate 检查利率与周期，非法时返回 INVALID_INPUT 错误
func (c Config) Validate() error {
	if c.DemandRate != nil && *c.DemandRate < 0 {
		return invalidConfig("demand rate", *c.DemandRate)
	}
	if c.DepositRate != nil && *c.DepositRate < 0 {
		return invalidConfig("deposit rate", *c.DepositRate)
	}
	if c.GatePeriod < 0 {
		return invalidConfig("gate period", c.GatePeriod)
	}
	if c.Variant != 0 && !c.Variant.Valid() {
		return appErrors.NewError(appErrors.ErrCodeInvalidInput,
			fmt.Sprintf("unrecognized account type %d", int(c.Variant)))
	}
	return nil
}

func invalidConfig(field string, v int) error {
	return appErrors.NewError(appErrors.ErrCodeInvalidInput,
		fmt.Sprintf("%s must not be negative, got %d", field, v)).WithContext("field", field)
}

func (c Config) withDefaults(name string) Config {
	if c.DemandRate == nil {
		c.DemandRate = Rate(DefaultDemandRate)
	} else {
		c.DemandRate = Rate(*c.DemandRate)
	}
	if c.DepositRate == nil {
		c.DepositRate = Rate(DefaultDepositRate)
	} else {
		c.DepositRate = Rate(*c.DepositRate)
	}
	if c.GatePeriod == 0 {
		c.GatePeriod = DefaultGatePeriod
	}
	if c.IDs == nil {
		c.IDs = idgen.NewSequence(1)
	}
	if c.Logger == nil {
		c.Logger = logging.GetLogger().WithFields(
			logging.String("component", "bank"),
			logging.String("bank", name),
		)
	}
	return c
}

func (c Config) rateFor(t AccountType) int {
	if t == AccountDeposit {
		return *c.DepositRate
	}
	return *c.DemandRate
}
