package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadClientConfigRequiresAPIURL(t *testing.T) {
	t.Setenv("CARPOOL_API_URL", "")

	_, err := LoadClientConfig()
	if err == nil || !strings.Contains(err.Error(), "CARPOOL_API_URL") {
		t.Fatalf("expected missing CARPOOL_API_URL error, got %v", err)
	}
}

func TestLoadClientConfigDefaults(t *testing.T) {
	t.Setenv("CARPOOL_API_URL", "http://localhost:8080/api")

	cfg, err := LoadClientConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://localhost:8080/api" {
		t.Fatalf("unexpected api url %q", cfg.APIURL)
	}
	if cfg.Storage != "file" {
		t.Fatalf("expected file storage, got %q", cfg.Storage)
	}
	if cfg.LocationTopic != "driver-locations" {
		t.Fatalf("unexpected topic %q", cfg.LocationTopic)
	}
}

func TestLoadClientConfigTrimsURLAndBrokers(t *testing.T) {
	t.Setenv("CARPOOL_API_URL", "https://api.example.com/v1/")
	t.Setenv("KAFKA_BROKERS", "a:9092, ,b:9092")

	cfg, err := LoadClientConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "https://api.example.com/v1" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.APIURL)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
}

func TestLoadClientConfigJoinsErrors(t *testing.T) {
	t.Setenv("CARPOOL_API_URL", "not a url")
	t.Setenv("CARPOOL_STORAGE", "postgres")
	t.Setenv("PG_DSN", "")

	_, err := LoadClientConfig()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"CARPOOL_API_URL", "PG_DSN"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %v", want, err)
		}
	}
}

func TestLoadClientConfigParseError(t *testing.T) {
	t.Setenv("CARPOOL_API_URL", "http://localhost:8080/api")
	t.Setenv("CARPOOL_SPEED_MPS", "fast")

	_, err := LoadClientConfig()
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}

func TestLoadDevAPIConfig(t *testing.T) {
	t.Setenv("TOKEN_TTL", "90m")
	t.Setenv("JWT_SECRET", "0123456789")

	cfg, err := LoadDevAPIConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TokenTTL != 90*time.Minute {
		t.Fatalf("unexpected ttl %s", cfg.TokenTTL)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.HTTPAddr)
	}

	t.Setenv("JWT_SECRET", "short")
	if _, err := LoadDevAPIConfig(); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}

func TestLoadConsumerConfig(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("KAFKA_GROUP", "indexer-test")

	cfg, err := LoadConsumerConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.GroupID != "indexer-test" || cfg.RedisGeoKey != "drivers_geo" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	t.Setenv("KAFKA_BROKERS", " , ")
	if _, err := LoadConsumerConfig(); err == nil {
		t.Fatal("expected empty broker list to be rejected")
	}
}
