package errors

import (
	stdErrors "errors"
	"fmt"
	"log/slog"
	"testing"
)

func TestIsComparesCodes(t *testing.T) {
	sentinel := New(CodeConflict, "busy")
	other := New(CodeConflict, "different message")
	if !stdErrors.Is(other, sentinel) {
		t.Fatal("errors with the same code should match")
	}
	if stdErrors.Is(New(CodeNotFound, "busy"), sentinel) {
		t.Fatal("errors with different codes must not match")
	}
	wrapped := fmt.Errorf("outer: %w", other)
	if !stdErrors.Is(wrapped, sentinel) {
		t.Fatal("wrapped error should match")
	}
}

func TestCodeOfAndAttributes(t *testing.T) {
	err := fmt.Errorf("ctx: %w", Wrap(CodeStorageFailure, stdErrors.New("disk full"), "save failed"))
	if got := CodeOf(err); got != CodeStorageFailure {
		t.Fatalf("unexpected code %s", got)
	}
	if !RetryableError(err) {
		t.Fatal("storage failures are retryable")
	}
	if SeverityOf(err) != SeverityCritical {
		t.Fatalf("unexpected severity %s", SeverityOf(err))
	}
	if CodeOf(stdErrors.New("plain")) != CodeUnknown {
		t.Fatal("plain errors map to unknown")
	}
	if RetryableError(New(CodeTimeout, "", WithRetryable(false))) {
		t.Fatal("option should override registry")
	}
}

func TestSeverityLevelAndRecoverable(t *testing.T) {
	levels := map[Severity]slog.Level{
		SeverityInfo:     slog.LevelInfo,
		SeverityWarning:  slog.LevelWarn,
		SeverityCritical: slog.LevelError,
		"":               slog.LevelError,
	}
	for sev, want := range levels {
		if got := sev.Level(); got != want {
			t.Fatalf("%q: got %s want %s", sev, got, want)
		}
	}

	err := New(CodeInvalidArgument, "bad", WithSeverity(SeverityCritical))
	if SeverityOf(err) != SeverityCritical {
		t.Fatal("option should override registered severity")
	}
	if !RecoverableError(fmt.Errorf("outer: %w", err)) {
		t.Fatal("invalid argument is recoverable")
	}
	if RecoverableError(New(CodeStorageFailure, "")) || RecoverableError(stdErrors.New("plain")) {
		t.Fatal("storage failures and plain errors are not recoverable")
	}
}

func TestNewUsesRegisteredMessage(t *testing.T) {
	const code Code = "TEST_REGISTERED"
	Register(code, Attributes{Message: "registered message", Severity: SeverityWarning})
	err := New(code, "")
	if err.Message() != "registered message" {
		t.Fatalf("unexpected message %q", err.Message())
	}
	if err.Error() != "[TEST_REGISTERED] registered message" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
	if AttributesOf("NEVER_REGISTERED").Message != AttributesOf(CodeUnknown).Message {
		t.Fatal("unknown codes fall back to UNKNOWN")
	}
}

func TestCause(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", stdErrors.New("execution reverted: Lottery is closed"), "execution reverted: Lottery is closed"},
		{"wrapped plain", Wrap(CodeTimeout, stdErrors.New("user rejected"), "send failed"), "user rejected"},
		{"coded leaf", fmt.Errorf("outer: %w", New(CodeInvalidArgument, "Please enter all 7 numbers")), "Please enter all 7 numbers"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Cause(tc.err); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestMetadataIsCopied(t *testing.T) {
	err := New(CodeInvalidArgument, "bad", WithMetadata("field", "numbers"))
	meta := err.Metadata()
	meta["field"] = "changed"
	if err.Metadata()["field"] != "numbers" {
		t.Fatal("metadata must be returned as a copy")
	}
	if New(CodeInvalidArgument, "bad").Metadata() != nil {
		t.Fatal("empty metadata should be nil")
	}
}
