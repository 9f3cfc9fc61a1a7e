package booking

import (
	"errors"
	"testing"
)

func TestValidPhone(t *testing.T) {
	for _, raw := range []string{"(11)91234-5678", "(11) 91234-5678", "11912345678", "1134567890", " (21)3456-7890 "} {
		if _, ok := validPhone(raw); !ok {
			t.Fatalf("expected %q to be valid", raw)
		}
	}
	for _, raw := range []string{"abc", "", "91234-5678", "(11)91234-56789", "+55 11 91234-5678"} {
		if _, ok := validPhone(raw); ok {
			t.Fatalf("expected %q to be invalid", raw)
		}
	}
}

func TestValidEmail(t *testing.T) {
	email, ok := validEmail(" Ana.Silva+book@Example.com ")
	if !ok || email != "ana.silva+book@example.com" {
		t.Fatalf("unexpected %q %v", email, ok)
	}
	for _, raw := range []string{"ana", "ana@", "@example.com", "ana@example", "a b@example.com"} {
		if _, ok := validEmail(raw); ok {
			t.Fatalf("expected %q to be invalid", raw)
		}
	}
}

func TestValidName(t *testing.T) {
	name, ok := validName("  Ana   Maria ")
	if !ok || name != "Ana Maria" {
		t.Fatalf("unexpected %q %v", name, ok)
	}
	if _, ok := validName("   "); ok {
		t.Fatal("blank name must be invalid")
	}
	if _, ok := validName("12345"); ok {
		t.Fatal("name without letters must be invalid")
	}
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := newError(KindSlotContention, "taken", nil)
	if !errors.Is(err, ErrSlotContention) || errors.Is(err, ErrValidation) {
		t.Fatal("kind sentinels must match by kind only")
	}
	if KindOf(err) != KindSlotContention || KindOf(nil) != "" {
		t.Fatal("unexpected KindOf result")
	}
}

