package slog

import (
	"bytes"
	stdslog "log/slog"
	"strings"
	"testing"

	"github.com/unkn0wn-root/catalogcache/logging"
)

func TestAdapterSortsAndRedacts(t *testing.T) {
	var buf bytes.Buffer
	l := New(stdslog.New(stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelDebug})), "engine")

	l.Info("reconfigured", logging.Fields{"zeta": 1, "alpha": 2, "password": "hunter2"})

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Fatalf("password leaked: %s", out)
	}
	if !strings.Contains(out, "component=engine") {
		t.Fatalf("missing component: %s", out)
	}
	if strings.Index(out, "alpha=") > strings.Index(out, "zeta=") {
		t.Fatalf("keys not sorted: %s", out)
	}
}

func TestAdapterSkipsDisabledLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(stdslog.New(stdslog.NewTextHandler(&buf, &stdslog.HandlerOptions{Level: stdslog.LevelWarn})), "engine")
	l.Debug("noise", logging.Fields{"k": "v"})
	if buf.Len() != 0 {
		t.Fatalf("debug written at warn level: %s", buf.String())
	}
}
