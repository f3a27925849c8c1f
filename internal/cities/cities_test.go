package cities

import (
	"errors"
	"testing"
)

func TestResolveKnownCity(t *testing.T) {
	t.Parallel()
	d := NewDirectory()

	code, err := d.Resolve("تهران")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if code != 11320000 {
		t.Fatalf("Resolve = %d, want 11320000", code)
	}
}

func TestResolveUnknownCity(t *testing.T) {
	t.Parallel()
	d := NewDirectory()

	_, err := d.Resolve("ونیز")
	if !errors.Is(err, ErrUnknownCity) {
		t.Fatalf("expected ErrUnknownCity, got %v", err)
	}
}

func TestListExcluding(t *testing.T) {
	t.Parallel()
	d := NewDirectory()

	got := d.ListExcluding("تهران")
	if len(got) != d.Len()-1 {
		t.Fatalf("len = %d, want %d", len(got), d.Len()-1)
	}
	for _, name := range got {
		if name == "تهران" {
			t.Fatal("excluded city still present in list")
		}
	}

	// Unknown name excludes nothing.
	if got := d.ListExcluding("ونیز"); len(got) != d.Len() {
		t.Fatalf("len = %d, want %d", len(got), d.Len())
	}
}

func TestNamesOrderStable(t *testing.T) {
	t.Parallel()
	d := NewDirectory()

	a := d.Names()
	b := d.Names()
	if len(a) != d.Len() {
		t.Fatalf("len = %d, want %d", len(a), d.Len())
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("order not stable at %d: %q vs %q", i, a[i], b[i])
		}
	}
	if a[0] != "ملایر" || a[len(a)-1] != "یزد" {
		t.Fatalf("unexpected table order: first=%q last=%q", a[0], a[len(a)-1])
	}
}
