package kafka_config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Enabled {
		t.Error("kafka should be disabled by default")
	}
	if cfg.ReleaseTopic != DefaultReleaseTopic {
		t.Errorf("expected %s, got %s", DefaultReleaseTopic, cfg.ReleaseTopic)
	}
}

func TestLoad_BrokersAreTrimmed(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "a:9092, b:9092 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "b:9092" {
		t.Errorf("unexpected brokers %v", cfg.Brokers)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Setenv(EnvKafkaProducerCompression, "brotli")
	t.Setenv(EnvKafkaConsumerStartOffset, "5")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"ProducerCompression", "ConsumerStartOffset"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %s in error, got %v", want, err)
		}
	}
}
