package domain

import "testing"

// FuzzParseID checks that parsing never panics and that every accepted value
// round-trips unchanged through String().
func FuzzParseID(f *testing.F) {
	f.Add("analytics")
	f.Add("a-1_b")
	f.Add("")
	f.Add("-leading")
	f.Add("päid")

	f.Fuzz(func(t *testing.T, s string) {
		id, err := ParseID(s)
		if err != nil {
			return
		}
		if id.String() != s {
			t.Fatalf("round trip mismatch: %q -> %q", s, id.String())
		}
		if len(s) == 0 || len(s) > maxIDLength {
			t.Fatalf("accepted out-of-bounds length %d", len(s))
		}
	})
}
