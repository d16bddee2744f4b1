package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/vango-dev/vdombridge/internal/config"
	"github.com/vango-dev/vdombridge/internal/counter"
)

func loadDefaults(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(map[string]string{
		"VDOMBRIDGE_ADDR":      ":7000",
		"VDOMBRIDGE_UNDERFLOW": "fail",
	})
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func parseFlags(t *testing.T, args ...string) (*serveFlags, *pflag.FlagSet) {
	t.Helper()
	var f serveFlags
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	f.register(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	return &f, fs
}

func TestServeFlags_OverrideOnlyWhenSet(t *testing.T) {
	f, fs := parseFlags(t, "--path=/live", "--defer-delay=1s", "--underflow=reject")

	cfg := loadDefaults(t)
	if err := f.apply(fs, cfg); err != nil {
		t.Fatalf("apply() error: %v", err)
	}
	if cfg.Address != ":7000" {
		t.Errorf("Address = %q, env value should survive", cfg.Address)
	}
	if cfg.Path != "/live" || cfg.DeferDelay != time.Second || cfg.Underflow != counter.UnderflowReject {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestServeFlags_InvalidValue(t *testing.T) {
	f, fs := parseFlags(t, "--log-format=xml")
	if err := f.apply(fs, loadDefaults(t)); err == nil {
		t.Fatal("apply() accepted an invalid log format")
	}

	f, fs = parseFlags(t, "--underflow=wrap")
	if err := f.apply(fs, loadDefaults(t)); err == nil {
		t.Fatal("apply() accepted an invalid underflow policy")
	}
}

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--short"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != version {
		t.Errorf("version output = %q", out.String())
	}
}
