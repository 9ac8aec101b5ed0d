package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.DBPath != "data/medbox.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "data/medbox.db")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BASE_URL", "https://medbox.example.com")
	t.Setenv("GOOGLE_CLIENT_ID", "client-123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.GoogleClientID != "client-123" {
		t.Errorf("GoogleClientID = %q, want %q", cfg.GoogleClientID, "client-123")
	}
	if got, want := cfg.CallbackURL(), "https://medbox.example.com/login/callback"; got != want {
		t.Errorf("CallbackURL() = %q, want %q", got, want)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail on a non-numeric PORT")
	}
}
