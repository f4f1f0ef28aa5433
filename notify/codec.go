// Package notify 提供可直接挂到账户上的通知订阅者：日志、转发到消息传输、SQLite 审计日志
package notify

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gobank/bank"
	appErrors "gobank/errors"
	"gobank/messaging"
)

// MetadataSource 元数据中记录来源银行名的键
const MetadataSource = "source"

// Payload 通知的消息体，金额以十进制字符串编码，账户 id 以字符串编码以免 JSON 数值精度丢失
type Payload struct {
	AccountID int64           `json:"account_id,string"`
	Message   string          `json:"message"`
	Amount    decimal.Decimal `json:"amount"`
}

// ToMessage 将通知转换为消息，类型为 Kind.String()
func ToMessage(n bank.Notification, source string) *messaging.Message {
	msg := messaging.NewMessage(uuid.NewString(), n.Kind.String(), Payload{
		AccountID: n.AccountID,
		Message:   n.Message,
		Amount:    n.Amount,
	})
	if source != "" {
		msg.SetMetadata(MetadataSource, source)
	}
	return msg
}

// FromMessage 还原通知，payload 可以是 Payload 或经 JSON 传输后的通用对象
func FromMessage(msg messaging.IMessage) (bank.Notification, error) {
	kind, ok := bank.ParseKind(msg.GetType())
	if !ok {
		return bank.Notification{}, appErrors.NewError(appErrors.ErrCodeInvalidInput, "unknown notification type").
			WithContext("type", msg.GetType())
	}

	var p Payload
	switch v := msg.GetPayload().(type) {
	case Payload:
		p = v
	case *Payload:
		if v == nil {
			return bank.Notification{}, appErrors.NewError(appErrors.ErrCodeInvalidInput, "empty notification payload")
		}
		p = *v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return bank.Notification{}, appErrors.WrapError(err, appErrors.ErrCodeInvalidInput, "encode notification payload")
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return bank.Notification{}, appErrors.WrapError(err, appErrors.ErrCodeInvalidInput, "decode notification payload")
		}
	}

	return bank.Notification{
		Kind:      kind,
		AccountID: p.AccountID,
		Message:   p.Message,
		Amount:    p.Amount,
	}, nil
}
