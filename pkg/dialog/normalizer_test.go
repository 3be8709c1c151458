package dialog

import "testing"

func TestNormalizeSubstitutesAndStripsFillers(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"   ", ""},
		{"Umm Aadhar CARD update", "આધાર કાર્ડ સુધારો"},
		{"okay done", "done"},
		{"cardboard", "cardboard"},
		{"hmm  મારું  name   બદલો", "મારું નામ બદલો"},
	}
	for _, tc := range cases {
		if got := n.Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	in := "mobile number change please"
	first := n.Normalize(in)
	for i := 0; i < 20; i++ {
		if got := n.Normalize(in); got != first {
			t.Fatalf("expected stable output %q, got %q", first, got)
		}
	}
}
