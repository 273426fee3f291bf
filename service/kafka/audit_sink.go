package kafka

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/Shopify/sarama"
)

// AuditSink 把审计日志行异步写到 kafka，实现 io.Writer 供 zap 使用。
// Write 不阻塞：生产者输入队列满了就丢弃并计数。
type AuditSink struct {
	topic   string
	prod    sarama.AsyncProducer
	dropped atomic.Int64
	failed  atomic.Int64

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAuditSink(c AppConfig) (*AuditSink, error) {
	p, err := sarama.NewAsyncProducer(c.Brokers, BuildBaseConfig(c))
	if err != nil {
		return nil, fmt.Errorf("new audit producer: %w", err)
	}
	return NewAuditSinkWithProducer(p, c.Topic), nil
}

func NewAuditSinkWithProducer(p sarama.AsyncProducer, topic string) *AuditSink {
	s := &AuditSink{topic: topic, prod: p}
	s.wg.Add(1)
	go s.drain()
	return s
}

// drain 必须持续读 Errors()，否则生产者会卡住
func (s *AuditSink) drain() {
	defer s.wg.Done()
	for err := range s.prod.Errors() {
		// 不能走 logger，否则失败的审计日志会再写回自己
		if s.failed.Add(1)%100 == 1 {
			fmt.Fprintf(os.Stderr, "audit sink: %v\n", err)
		}
	}
}

func (s *AuditSink) Write(p []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("audit sink closed")
	}
	// zap 会复用 buffer
	buf := make([]byte, len(p))
	copy(buf, p)
	msg := &sarama.ProducerMessage{Topic: s.topic, Value: sarama.ByteEncoder(buf)}
	select {
	case s.prod.Input() <- msg:
	default:
		s.dropped.Add(1)
	}
	return len(p), nil
}

// Sync zap.WriteSyncer
func (s *AuditSink) Sync() error { return nil }

func (s *AuditSink) Dropped() int64 { return s.dropped.Load() }

func (s *AuditSink) Failed() int64 { return s.failed.Load() }

func (s *AuditSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	err := s.prod.Close()
	s.wg.Wait()
	return err
}
