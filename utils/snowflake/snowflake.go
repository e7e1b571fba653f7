package snowflake

import (
	"errors"
	"sync"
	"time"
)

// Epoch 自定义纪元 2024-01-01 00:00:00 UTC（毫秒）
const Epoch int64 = 1704067200000

const (
	workerBits   = 10
	sequenceBits = 12

	maxWorkerID  = -1 ^ (-1 << workerBits)
	sequenceMask = -1 ^ (-1 << sequenceBits)

	workerShift    = sequenceBits
	timestampShift = sequenceBits + workerBits
)

var (
	ErrInvalidWorkerID     = errors.New("worker ID exceeds maximum value")
	ErrClockMovedBackwards = errors.New("clock moved backwards")
)

// Generator 生成 41 位毫秒时间戳 | 10 位 worker | 12 位序列号 的 ID。
// 封禁记录和系统回复消息的 ID 都由它生成。
type Generator struct {
	mu sync.Mutex

	workerID      int64
	sequence      int64
	lastTimestamp int64

	now func() time.Time
}

// NewGenerator 创建指定 worker 的生成器
func NewGenerator(workerID int64) (*Generator, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, ErrInvalidWorkerID
	}
	return &Generator{workerID: workerID, now: time.Now}, nil
}

// NextID 生成下一个 ID；同一毫秒内序列号耗尽时等待下一毫秒
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.millis()
	if ts < g.lastTimestamp {
		return 0, ErrClockMovedBackwards
	}

	if ts == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & sequenceMask
		if g.sequence == 0 {
			for ts <= g.lastTimestamp {
				ts = g.millis()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTimestamp = ts

	return ((ts - Epoch) << timestampShift) | (g.workerID << workerShift) | g.sequence, nil
}

func (g *Generator) millis() int64 {
	return g.now().UnixMilli()
}

// Time 还原 ID 中的生成时间
func Time(id int64) time.Time {
	return time.UnixMilli((id >> timestampShift) + Epoch)
}

// WorkerID 还原 ID 中的 worker
func WorkerID(id int64) int64 {
	return (id >> workerShift) & maxWorkerID
}
