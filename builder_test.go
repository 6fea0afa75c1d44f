package goAccounts

import (
	"testing"
	"time"
)

func TestBuildRequiresStore(t *testing.T) {
	_, err := New().Build()
	if err == nil || err.Error() != "credential store required" {
		t.Fatalf("Build() err = %v", err)
	}
}

func TestBuildRequiresCeremonyAndRedisTogether(t *testing.T) {
	_, err := New().
		WithStore(newFakeStore()).
		WithCeremonyService(&fakeCeremonyService{}).
		Build()
	if err == nil {
		t.Fatal("expected error with ceremony but no redis")
	}

	_, client := newTestRedis(t)
	_, err = New().
		WithStore(newFakeStore()).
		WithRedis(client).
		Build()
	if err == nil {
		t.Fatal("expected error with redis but no ceremony")
	}
}

func TestBuilderBuildsOnce(t *testing.T) {
	b := New().WithStore(newFakeStore())

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("first Build() err = %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build() to fail")
	}
}

func TestBuildRejectsNegativeConfig(t *testing.T) {
	cases := map[string]Config{
		"iterations": {Password: PasswordConfig{Iterations: -1}},
		"reset ttl":  {Reset: ResetConfig{TTL: -time.Minute}},
		"token ttl":  {Token: TokenConfig{ModificationTTL: -time.Second}},
		"challenge":  {Challenge: ChallengeConfig{TTL: -time.Second}},
	}

	for name, cfg := range cases {
		if _, err := New().WithConfig(cfg).WithStore(newFakeStore()).Build(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestConfigDefaultsFillZeroValues(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	want := defaultConfig()
	if cfg != want {
		t.Fatalf("applyDefaults() = %+v, want %+v", cfg, want)
	}
}

func TestConfigDefaultsKeepExplicitValues(t *testing.T) {
	cfg := Config{
		Password: PasswordConfig{Iterations: 64, MinLength: 12},
		Reset:    ResetConfig{TTL: time.Minute},
	}
	cfg.applyDefaults()

	if cfg.Password.Iterations != 64 || cfg.Password.MinLength != 12 {
		t.Fatalf("password config overwritten: %+v", cfg.Password)
	}
	if cfg.Reset.TTL != time.Minute {
		t.Fatalf("reset TTL overwritten: %v", cfg.Reset.TTL)
	}
	if cfg.Token.ModificationTTL != time.Hour {
		t.Fatalf("token TTL not defaulted: %v", cfg.Token.ModificationTTL)
	}
}
