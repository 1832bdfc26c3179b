package numerals

import "testing"

func TestToASCII(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"all glyphs", "٠١٢٣٤٥٦٧٨٩", "0123456789"},
		{"mixed text", "تبقى ٥ قطع", "تبقى 5 قطع"},
		{"ascii passthrough", "page 12 of 34", "page 12 of 34"},
		{"no digits", "متوفر", "متوفر"},
		{"interleaved", "a١b٢c٣", "a1b2c3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ToASCII(tc.in); got != tc.want {
				t.Fatalf("ToASCII(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestToASCIIIdempotent(t *testing.T) {
	t.Parallel()

	in := "٧ widgets, ٣ left"
	once := ToASCII(in)
	if twice := ToASCII(once); twice != once {
		t.Fatalf("ToASCII not idempotent: %q -> %q", once, twice)
	}
}
