package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MATCH_RADIUS_KM", "")
	t.Setenv("BASE_FARE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Trip.MatchRadiusKm != 10 {
		t.Errorf("MatchRadiusKm = %v, want 10", cfg.Trip.MatchRadiusKm)
	}
	if cfg.Trip.BaseFare != 5.0 || cfg.Trip.PerKmRate != 1.5 {
		t.Errorf("fares = %v/%v, want 5/1.5", cfg.Trip.BaseFare, cfg.Trip.PerKmRate)
	}
	if cfg.JWT.TTL != 24*time.Hour {
		t.Errorf("JWT TTL = %v, want 24h", cfg.JWT.TTL)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MATCH_RADIUS_KM", "3.5")
	t.Setenv("DECLINE_TTL_SECONDS", "12")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, ,kafka-2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Trip.MatchRadiusKm != 3.5 {
		t.Errorf("MatchRadiusKm = %v, want 3.5", cfg.Trip.MatchRadiusKm)
	}
	if cfg.Trip.DeclineTTL != 12*time.Second {
		t.Errorf("DeclineTTL = %v, want 12s", cfg.Trip.DeclineTTL)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "kafka-2:9092" {
		t.Errorf("Kafka.Brokers = %q", cfg.Kafka.Brokers)
	}
	if want := "host=db.internal port=5432 user=postgres password= dbname=family_taxi sslmode=disable"; cfg.DSN() != want {
		t.Errorf("DSN = %q, want %q", cfg.DSN(), want)
	}
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without JWT_SECRET")
	}
}

func TestLoad_RejectsNonPositiveRadius(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MATCH_RADIUS_KM", "-1")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative radius")
	}
}
