package logging

import "testing"

func TestSanitizeMasksCredentials(t *testing.T) {
	in := Fields{"username": "alice", "Password": "hunter2", "tmdb_api_key": "k", "target": "/player_api.php"}
	out := Sanitize(in)
	if out["Password"] != redacted || out["tmdb_api_key"] != redacted {
		t.Fatalf("credentials leaked: %v", out)
	}
	if out["username"] != "alice" || out["target"] != "/player_api.php" {
		t.Fatalf("unrelated fields changed: %v", out)
	}
	if in["Password"] != "hunter2" {
		t.Fatalf("input mutated")
	}
}

func TestSanitizeNoCopyWhenClean(t *testing.T) {
	in := Fields{"series_id": 7}
	out := Sanitize(in)
	out["x"] = 1
	if _, ok := in["x"]; !ok {
		t.Fatalf("expected the same map back when nothing is sensitive")
	}
	if Sanitize(nil) != nil {
		t.Fatalf("nil in, nil out")
	}
}

type capture struct {
	NopLogger
	got Fields
}

func (c *capture) Info(_ string, f Fields) { c.got = f }

func TestWithMergesAndCallSiteWins(t *testing.T) {
	c := &capture{}
	l := With(c, Fields{"component": "engine", "run_id": 1})
	l.Info("x", Fields{"run_id": 2})
	if c.got["component"] != "engine" || c.got["run_id"] != 2 {
		t.Fatalf("got %v", c.got)
	}
}
