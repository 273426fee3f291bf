package kafka

import (
	"strings"
	"time"

	"github.com/Shopify/sarama"
)

// AppConfig 审计 topic 的生产者配置
type AppConfig struct {
	Brokers             []string
	Topic               string
	ProducerRetries     int
	ProducerCompression string // none/snappy/lz4/zstd
	KafkaVersion        sarama.KafkaVersion
	FlushFrequency      time.Duration
}

func DefaultConfig(brokers []string, topic string) AppConfig {
	return AppConfig{
		Brokers:             brokers,
		Topic:               topic,
		ProducerRetries:     3,
		ProducerCompression: "snappy",
		KafkaVersion:        sarama.V2_1_0_0,
		FlushFrequency:      500 * time.Millisecond,
	}
}

func BuildBaseConfig(c AppConfig) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "session-gateway"
	cfg.Version = c.KafkaVersion

	// 审计日志丢几条可以接受，只等 leader
	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	if c.ProducerRetries <= 0 {
		c.ProducerRetries = 1
	}
	cfg.Producer.Retry.Max = c.ProducerRetries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Flush.Frequency = c.FlushFrequency
	switch strings.ToLower(c.ProducerCompression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}
