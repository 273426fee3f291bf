package kafka

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
)

func TestAuditSinkWritesCopy(t *testing.T) {
	cfg := mocks.NewTestConfig()
	p := mocks.NewAsyncProducer(t, cfg)
	p.ExpectInputWithCheckerFunctionAndSucceed(func(v []byte) error {
		if !bytes.Equal(v, []byte(`{"event":"forged_echo"}`)) {
			return fmt.Errorf("unexpected value %s", v)
		}
		return nil
	})
	s := NewAuditSinkWithProducer(p, "gateway_audit")

	line := []byte(`{"event":"forged_echo"}`)
	if n, err := s.Write(line); err != nil || n != len(line) {
		t.Fatalf("write = %d, %v", n, err)
	}
	// buffer 复用不能影响已经提交的消息
	copy(line, "XXXXXXXX")
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if s.Failed() != 0 || s.Dropped() != 0 {
		t.Fatalf("failed=%d dropped=%d", s.Failed(), s.Dropped())
	}
}

func TestAuditSinkCountsFailures(t *testing.T) {
	p := mocks.NewAsyncProducer(t, mocks.NewTestConfig())
	p.ExpectInputAndFail(errors.New("broker down"))
	p.ExpectInputAndSucceed()
	s := NewAuditSinkWithProducer(p, "gateway_audit")

	_, _ = s.Write([]byte("a"))
	_, _ = s.Write([]byte("b"))
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if s.Failed() != 1 {
		t.Fatalf("failed = %d", s.Failed())
	}
	if _, err := s.Write([]byte("c")); err == nil {
		t.Fatal("write after close should fail")
	}
	if err := s.Close(); err != nil {
		t.Fatal("second close should be a no-op")
	}
}

func TestBuildBaseConfig(t *testing.T) {
	c := DefaultConfig([]string{"127.0.0.1:9092"}, "gateway_audit")
	c.ProducerCompression = "lz4"
	c.ProducerRetries = 0
	cfg := BuildBaseConfig(c)
	if cfg.Producer.Compression != sarama.CompressionLZ4 {
		t.Fatalf("compression = %v", cfg.Producer.Compression)
	}
	if cfg.Producer.Retry.Max != 1 {
		t.Fatalf("retries = %d", cfg.Producer.Retry.Max)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}
