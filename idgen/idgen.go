// Package idgen 提供账户标识分配器
package idgen

import "sync/atomic"

// Generator 分配唯一的正整数标识
type Generator interface {
	NextID() (int64, error)
}

// Sequence 从给定起点单调递增的计数器，结果确定，适合测试与单进程场景
type Sequence struct {
	next atomic.Int64
}

// NewSequence 创建从 start 开始的计数器，start 小于 1 时从 1 开始
func NewSequence(start int64) *Sequence {
	if start < 1 {
		start = 1
	}
	s := &Sequence{}
	s.next.Store(start)
	return s
}

// NextID 返回当前值并前进一步
func (s *Sequence) NextID() (int64, error) {
	return s.next.Add(1) - 1, nil
}

// Peek 返回下一次将分配的值，不前进
func (s *Sequence) Peek() int64 {
	return s.next.Load()
}
