package logger

import "testing"

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	t.Setenv("LOG_REDACTION_ENABLED", "true")

	out := sanitizeKVs([]interface{}{
		"apikey", "k-123",
		"authorization", "abc",
		"url", "https://api.ocr.space/parse/image?apikey=k-123&language=eng",
		"kind", "pdf",
	})
	if got := out[1]; got != "[REDACTED]" {
		t.Fatalf("apikey: want=%q got=%v", "[REDACTED]", got)
	}
	if got := out[3]; got != "[REDACTED]" {
		t.Fatalf("authorization: want=%q got=%v", "[REDACTED]", got)
	}
	if got, want := out[5], "https://api.ocr.space/parse/image?apikey=[REDACTED]&language=eng"; got != want {
		t.Fatalf("url: want=%q got=%v", want, got)
	}
	if got := out[7]; got != "pdf" {
		t.Fatalf("kind: want=%q got=%v", "pdf", got)
	}
}

func TestSanitizeKVsHashesIdentifiers(t *testing.T) {
	out := sanitizeKVs([]interface{}{"idempotency_key", "abc"})
	s, _ := out[1].(string)
	if len(s) != len("hash:")+12 || s[:5] != "hash:" {
		t.Fatalf("idempotency_key: want hashed value, got=%q", s)
	}
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	log := Nop().With("service", "test")
	log.Info("hello", "k", "v")
	log.Sync()
}
