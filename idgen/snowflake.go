package idgen

import (
	"sync"
	"time"

	appErrors "gobank/errors"
)

const (
	// 起始时间戳 (2024-01-01 00:00:00 UTC)
	epoch int64 = 1704067200000

	nodeBits     = 10
	sequenceBits = 12

	maxNodeID   = -1 ^ (-1 << nodeBits)     // 1023
	maxSequence = -1 ^ (-1 << sequenceBits) // 4095

	nodeShift      = sequenceBits
	timestampShift = sequenceBits + nodeBits
)

// Snowflake 按时间有序的分布式标识生成器
// 布局: 41位毫秒时间戳 | 10位节点 | 12位序列
type Snowflake struct {
	mux           sync.Mutex
	nodeID        int64
	sequence      int64
	lastTimestamp int64
	now           func() int64
}

// NewSnowflake 创建生成器，nodeID 取值 [0, 1023]
func NewSnowflake(nodeID int64) (*Snowflake, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		return nil, appErrors.NewError(appErrors.ErrCodeInvalidInput, "snowflake node id out of range").
			WithContext("node_id", nodeID)
	}
	return &Snowflake{
		nodeID:        nodeID,
		lastTimestamp: -1,
		now:           func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// NextID 生成下一个标识，时钟回拨时返回错误
func (g *Snowflake) NextID() (int64, error) {
	g.mux.Lock()
	defer g.mux.Unlock()

	now := g.now()
	if now < g.lastTimestamp {
		return 0, appErrors.NewError(appErrors.ErrCodeInternal, "clock moved backwards, refusing to generate id").
			WithContext("last_timestamp", g.lastTimestamp)
	}

	if now == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// 序列号用完，等待下一毫秒
			for now <= g.lastTimestamp {
				now = g.now()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTimestamp = now

	return ((now - epoch) << timestampShift) | (g.nodeID << nodeShift) | g.sequence, nil
}

// SnowflakeParts 标识的各组成部分
type SnowflakeParts struct {
	Timestamp time.Time
	NodeID    int64
	Sequence  int64
}

// ParseSnowflake 拆解标识
func ParseSnowflake(id int64) SnowflakeParts {
	return SnowflakeParts{
		Timestamp: time.UnixMilli((id >> timestampShift) + epoch),
		NodeID:    (id >> nodeShift) & maxNodeID,
		Sequence:  id & maxSequence,
	}
}
