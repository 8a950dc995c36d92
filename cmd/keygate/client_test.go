package main

import (
	"testing"
)

func TestCLIConfigRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("KEYGATE_URL", "")

	if _, err := loadCLIConfig(); err == nil {
		t.Fatal("expected error before anything is saved")
	}

	want := CLIConfig{BaseURL: "http://keygate.test", Email: "bot@x.com", APIKey: "kg_abc"}
	if err := saveCLIConfig(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := loadCLIConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	f := newClientFlags("whoami")
	if err := f.parse(nil, false); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if *f.url != want.BaseURL || *f.email != want.Email {
		t.Fatalf("flags should default to saved config, got %q %q", *f.url, *f.email)
	}
	if c := f.client(); c.APIKey != want.APIKey {
		t.Fatalf("expected saved key to be used")
	}

	f = newClientFlags("whoami")
	if err := f.parse([]string{"--url", "http://other.test"}, false); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c := f.client(); c.APIKey != "" {
		t.Fatalf("saved key must not be sent to a different server")
	}
}

func TestClientFlagsRequireEmail(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	f := newClientFlags("reissue")
	if err := f.parse(nil, true); err == nil {
		t.Fatal("expected --email to be required")
	}
}
