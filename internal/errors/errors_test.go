package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	sentinel := New(CodeDuplicatePlugin, "")
	err := fmt.Errorf("load weather: %w", New(CodeDuplicatePlugin, "plugin weather already exists"))

	if !stdErrors.Is(err, sentinel) {
		t.Fatalf("expected errors.Is to match by code")
	}
	if stdErrors.Is(err, New(CodePluginNotFound, "")) {
		t.Fatalf("expected different codes not to match")
	}
	if got := CodeOf(err); got != CodeDuplicatePlugin {
		t.Fatalf("unexpected code: %s", got)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("symbol Module not found")
	err := Wrap(CodeImportFailure, cause, "", WithMetadata("module", "plugins.weather"))

	if !stdErrors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	if err.Message() != "module import failed" {
		t.Fatalf("expected default message, got %q", err.Message())
	}
	if err.Metadata()["module"] != "plugins.weather" {
		t.Fatalf("unexpected metadata: %v", err.Metadata())
	}
	if !err.Fatal() {
		t.Fatalf("import failures must abort the load")
	}
}

func TestSeverityFallbacks(t *testing.T) {
	if got := SeverityOf(stdErrors.New("plain")); got != SeverityCritical {
		t.Fatalf("expected unknown severity for plain errors, got %s", got)
	}
	err := New(CodeStorageFailure, "", WithSeverity(SeverityInfo))
	if got := SeverityOf(err); got != SeverityInfo {
		t.Fatalf("expected overridden severity, got %s", got)
	}
	if IsFatal(nil) {
		t.Fatalf("nil error must not be fatal")
	}
	if !IsFatal(stdErrors.New("plain")) {
		t.Fatalf("uncoded errors are treated as fatal")
	}
}

func TestRegisterCustomCode(t *testing.T) {
	const code Code = "TEST_CUSTOM"
	Register(code, Attributes{Message: "custom", Severity: SeverityInfo})

	if got := New(code, "").Message(); got != "custom" {
		t.Fatalf("unexpected message: %q", got)
	}
	if AttributesOf("MISSING").Message != "unknown error" {
		t.Fatalf("unregistered codes should fall back to UNKNOWN")
	}
}
