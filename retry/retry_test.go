package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/unkn0wn-root/catalogcache/failures"
)

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

type sleepRecorder struct{ delays []time.Duration }

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newExec(p Policy, tr *failures.Tracker, rec *sleepRecorder) *Executor {
	return New(p, tr, nil, WithSleep(rec.sleep))
}

func TestRetryTimingFailTwiceThenSucceed(t *testing.T) {
	tr := failures.New(time.Hour, nil)
	rec := &sleepRecorder{}
	e := newExec(Policy{Enabled: true, MaxAttempts: 3, InitialDelay: time.Second}, tr, rec)

	calls := 0
	v, ok, err := Do(context.Background(), e, "t1", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", statusErr(503)
		}
		return "ok", nil
	})
	if err != nil || !ok || v != "ok" {
		t.Fatalf("got v=%q ok=%v err=%v", v, ok, err)
	}
	if calls != 3 {
		t.Fatalf("want 3 calls, got %d", calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(rec.delays) != len(want) || rec.delays[0] != want[0] || rec.delays[1] != want[1] {
		t.Fatalf("delays = %v, want %v", rec.delays, want)
	}
	if tr.IsKnownFailure("t1") {
		t.Fatalf("success must not record a failure")
	}
}

func TestPersistentFailureShortCircuits(t *testing.T) {
	tr := failures.New(time.Hour, nil)
	rec := &sleepRecorder{}
	e := newExec(Policy{Enabled: true, MaxAttempts: 3, InitialDelay: 100 * time.Millisecond}, tr, rec)

	calls := 0
	op := func(context.Context) (int, error) {
		calls++
		return 0, errors.New("connection reset")
	}
	if _, ok, err := Do(context.Background(), e, "t2", op); ok || err != nil {
		t.Fatalf("want (false, nil), got ok=%v err=%v", ok, err)
	}
	if calls != 3 {
		t.Fatalf("want 3 calls, got %d", calls)
	}
	if !tr.IsKnownFailure("t2") {
		t.Fatalf("target should be known failing")
	}

	calls = 0
	if _, ok, err := Do(context.Background(), e, "t2", op); ok || err != nil {
		t.Fatalf("second call: ok=%v err=%v", ok, err)
	}
	if calls != 0 {
		t.Fatalf("known failure must make zero calls, made %d", calls)
	}
}

func TestRetryDisabledOrZeroAttempts(t *testing.T) {
	for name, p := range map[string]Policy{
		"zero attempts": {Enabled: true, MaxAttempts: 0, InitialDelay: time.Second},
		"disabled":      {Enabled: false, MaxAttempts: 5, InitialDelay: time.Second},
	} {
		t.Run(name, func(t *testing.T) {
			tr := failures.New(time.Hour, nil)
			rec := &sleepRecorder{}
			e := newExec(p, tr, rec)
			calls := 0
			_, ok, err := Do(context.Background(), e, "t3", func(context.Context) (int, error) {
				calls++
				return 0, statusErr(500)
			})
			if ok || err != nil {
				t.Fatalf("ok=%v err=%v", ok, err)
			}
			if calls != 1 || len(rec.delays) != 0 {
				t.Fatalf("calls=%d delays=%v", calls, rec.delays)
			}
			if !tr.IsKnownFailure("t3") {
				t.Fatalf("single failing attempt must record the target")
			}
		})
	}
}

func TestClientErrorIsNotRetried(t *testing.T) {
	tr := failures.New(time.Hour, nil)
	rec := &sleepRecorder{}
	e := newExec(Policy{Enabled: true, MaxAttempts: 5, InitialDelay: time.Second}, tr, rec)

	calls := 0
	_, ok, _ := Do(context.Background(), e, "t4", func(context.Context) (int, error) {
		calls++
		return 0, statusErr(404)
	})
	if ok || calls != 1 || len(rec.delays) != 0 {
		t.Fatalf("ok=%v calls=%d delays=%v", ok, calls, rec.delays)
	}
}

func TestThrowOnPersistentFailure(t *testing.T) {
	e := newExec(Policy{Enabled: true, MaxAttempts: 2, InitialDelay: time.Millisecond, ThrowOnPersistentFailure: true},
		failures.New(time.Hour, nil), &sleepRecorder{})

	cause := statusErr(502)
	_, _, err := Do(context.Background(), e, "t5", func(context.Context) (int, error) { return 0, cause })
	var pe *PersistentError
	if !errors.As(err, &pe) {
		t.Fatalf("want *PersistentError, got %v", err)
	}
	if pe.Attempts != 2 || !errors.Is(err, cause) {
		t.Fatalf("unexpected error %+v", pe)
	}
}

func TestCancellationIsNotRecorded(t *testing.T) {
	tr := failures.New(time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	e := New(Policy{Enabled: true, MaxAttempts: 3, InitialDelay: time.Hour}, tr, nil)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, ok, err := Do(ctx, e, "t6", func(context.Context) (int, error) { return 0, statusErr(503) })
	if ok || !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got ok=%v err=%v", ok, err)
	}
	if tr.IsKnownFailure("t6") {
		t.Fatalf("cancelled target must not be recorded")
	}
}

func TestPersistentHookFires(t *testing.T) {
	var got string
	e := New(Policy{}, failures.New(time.Hour, nil), nil,
		WithPersistentHook(func(target string, _ error) { got = target }))
	_, _, _ = Do(context.Background(), e, "t7", func(context.Context) (int, error) { return 0, statusErr(500) })
	if got != "t7" {
		t.Fatalf("hook not called, got %q", got)
	}
}

func TestClassify(t *testing.T) {
	cases := map[error]Class{
		statusErr(400):                         Permanent,
		statusErr(404):                         Permanent,
		statusErr(408):                         Transient,
		statusErr(429):                         Transient,
		statusErr(500):                         Transient,
		fmt.Errorf("wrap: %w", statusErr(403)): Permanent,
		errors.New("boom"):                     Transient,
	}
	for err, want := range cases {
		if got := Classify(err); got != want {
			t.Fatalf("Classify(%v) = %v, want %v", err, got, want)
		}
	}
}
