package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestBacklinksConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should pass: %v", err)
	}
	if !cfg.Backlinks.AutoRefresh {
		t.Error("auto refresh should default to on")
	}
	if got := cfg.Backlinks.Options().Concurrency; got != 8 {
		t.Errorf("concurrency = %d, want 8", got)
	}
}

func TestBacklinksConfig_OutputFolder(t *testing.T) {
	for _, tc := range []struct {
		folder string
		ok     bool
	}{
		{"", true},
		{"generated", true},
		{"generated/backlinks/", true},
		{"a/../b", true},
		{"/abs", false},
		{"..", false},
		{"../outside", false},
		{"a/../../outside", false},
		{`win\path`, false},
	} {
		cfg := BacklinksConfig{OutputFolder: tc.folder, Concurrency: 1}
		err := cfg.Validate()
		if (err == nil) != tc.ok {
			t.Errorf("OutputFolder %q: err = %v, want ok=%v", tc.folder, err, tc.ok)
		}
	}
}

func TestBacklinksConfig_OptionsTrimSlashes(t *testing.T) {
	cfg := BacklinksConfig{OutputFolder: "generated/", Concurrency: 3}
	opts := cfg.Options()
	if opts.OutputFolder != "generated" || opts.Concurrency != 3 {
		t.Errorf("options = %+v", opts)
	}
}

func TestBacklinksConfig_ConcurrencyBounds(t *testing.T) {
	for _, n := range []int{0, -1, 65} {
		cfg := BacklinksConfig{Concurrency: n}
		if err := cfg.Validate(); err == nil {
			t.Errorf("concurrency %d should fail validation", n)
		}
	}
}
