package bank

import (
	"fmt"

	appErrors "gobank/errors"
)

var (
	// ErrAccountCreation 所有开户失败的共同哨兵
	ErrAccountCreation = appErrors.NewError(appErrors.ErrCodeAccountCreation, "account creation failed")
	// ErrAccountNotFound 所有查无账户错误的共同哨兵
	ErrAccountNotFound = appErrors.NewError(appErrors.ErrCodeNotFound, "account not found")
)

// AccountCreationError 开户失败，集合未被修改
type AccountCreationError struct {
	Type   AccountType
	Reason string
	Cause  error
}

func (e *AccountCreationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("create %s account: %s: %v", e.Type, e.Reason, e.Cause)
	}
	return fmt.Sprintf("create %s account: %s", e.Type, e.Reason)
}

func (e *AccountCreationError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrAccountCreation, e.Cause}
	}
	return []error{ErrAccountCreation}
}

// AccountNotFoundError 银行中没有该 id 的存活账户
type AccountNotFoundError struct {
	ID int64
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("account %d not found", e.ID)
}

func (e *AccountNotFoundError) Unwrap() error {
	return ErrAccountNotFound
}
