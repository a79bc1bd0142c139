package label

import "testing"

func TestOther(t *testing.T) {
	if o, ok := A.Other(); !ok || o != B {
		t.Fatalf("A.Other() = %v, %v", o, ok)
	}
	if o, ok := B.Other(); !ok || o != A {
		t.Fatalf("B.Other() = %v, %v", o, ok)
	}
	if _, ok := Unknown.Other(); ok {
		t.Fatalf("unknown must not have an opposite")
	}
}

func TestParse(t *testing.T) {
	cases := map[string]Label{"A": A, " b ": B, "unknown": Unknown, "None": Unknown}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil || got != want {
			t.Fatalf("Parse(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := Parse("C"); err == nil {
		t.Fatalf("expected error for C")
	}
	if _, err := MustCategory("unknown"); err == nil {
		t.Fatalf("unknown is not a category")
	}
}

func TestTextRoundTrip(t *testing.T) {
	for _, l := range []Label{A, B, Unknown} {
		b, _ := l.MarshalText()
		var got Label
		if err := got.UnmarshalText(b); err != nil || got != l {
			t.Fatalf("round trip %v: got %v, %v", l, got, err)
		}
	}
}
