package ids

import (
	"strconv"
	"sync"
	"time"
)

const (
	nodeBits = 10
	seqBits  = 12
	maxNode  = 1<<nodeBits - 1
	seqMask  = 1<<seqBits - 1
)

var epoch = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// Generator 雪花ID：41 位毫秒时间戳 | 10 位节点 | 12 位序列。
// 同一进程内单调递增，永不重复，连接ID和 NATS 消息ID用它。
type Generator struct {
	mu       sync.Mutex
	nodeID   int64
	seq      int64
	lastTSMS int64
}

func NewGenerator(nodeID int64) *Generator {
	if nodeID < 0 || nodeID > maxNode {
		nodeID = 1
	}
	return &Generator{nodeID: nodeID}
}

var (
	defaultGen *Generator
	once       sync.Once
)

func initDefault() {
	once.Do(func() {
		defaultGen = NewGenerator(1)
	})
}

// SetNodeID 设置默认生成器的 nodeID（0~1023），在 main() 初始化时调用
func SetNodeID(nodeID int64) {
	initDefault()
	if nodeID < 0 || nodeID > maxNode {
		nodeID = 1
	}
	defaultGen.mu.Lock()
	defaultGen.nodeID = nodeID
	defaultGen.mu.Unlock()
}

// Generate 生成一个新的雪花ID
func Generate() int64 {
	initDefault()
	return defaultGen.Next()
}

func GenerateString() string {
	return strconv.FormatInt(Generate(), 10)
}

func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Since(epoch).Milliseconds()
	if now < g.lastTSMS {
		// 时钟回拨：沿用上一个时间戳继续发号，保证单调
		now = g.lastTSMS
	}
	if now == g.lastTSMS {
		g.seq = (g.seq + 1) & seqMask
		if g.seq == 0 {
			// 序列溢出，借用下一毫秒
			now++
		}
	} else {
		g.seq = 0
	}
	g.lastTSMS = now

	ts := now & (1<<41 - 1)
	return ts<<(nodeBits+seqBits) | g.nodeID<<seqBits | g.seq
}
