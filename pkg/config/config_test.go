package config

import (
	"strings"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.SingleFeeBps != 1500 {
		t.Errorf("expected single fee 1500 bps, got %d", cfg.SingleFeeBps)
	}
	if cfg.CampaignFeeBps != 700 {
		t.Errorf("expected campaign fee 700 bps, got %d", cfg.CampaignFeeBps)
	}
	if cfg.Currency != "brl" {
		t.Errorf("expected currency brl, got %s", cfg.Currency)
	}
	if cfg.CancelOnPaymentFailure {
		t.Errorf("cancel on payment failure should be off by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv(EnvSingleFeeBps, "1000")
	t.Setenv(EnvCurrency, "USD")
	t.Setenv(EnvCancelOnPaymentFailure, "true")
	t.Setenv(EnvLockTTL, "45s")
	t.Setenv(EnvRedisDB, "not-a-number")

	cfg := FromEnv()

	if cfg.SingleFeeBps != 1000 {
		t.Errorf("expected 1000, got %d", cfg.SingleFeeBps)
	}
	if cfg.Currency != "usd" {
		t.Errorf("currency should be lower-cased, got %s", cfg.Currency)
	}
	if !cfg.CancelOnPaymentFailure {
		t.Errorf("expected CancelOnPaymentFailure to be true")
	}
	if cfg.LockTTL != 45*time.Second {
		t.Errorf("expected 45s lock ttl, got %s", cfg.LockTTL)
	}
	if cfg.RedisDB != 0 {
		t.Errorf("invalid number should fall back to default, got %d", cfg.RedisDB)
	}
}

func TestValidate_AccumulatesErrors(t *testing.T) {
	cfg := FromEnv()
	cfg.Port = "99999"
	cfg.MongoURI = "postgres://nope"
	cfg.SingleFeeBps = 20000
	cfg.LockTTL = 0
	cfg.CheckoutCancelURL = "/relative"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	msg := err.Error()
	for _, want := range []string{"Port", "MongoURI", "SingleFeeBps", "LockTTL", "CheckoutCancelURL"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected error to mention %s, got:\n%s", want, msg)
		}
	}
}

func TestRedactMongoURI(t *testing.T) {
	got := redactMongoURI("mongodb://admin:secret@db:27017/adspace")
	if strings.Contains(got, "secret") {
		t.Errorf("password leaked: %s", got)
	}
	if got != "mongodb://***:***@db:27017/adspace" {
		t.Errorf("unexpected redaction: %s", got)
	}
}
