package posting_test

import (
	"testing"

	"github.com/Speed-Jobs/jobwatch/internal/posting"
)

func TestFingerprintOf_PrefersSourceID(t *testing.T) {
	t.Parallel()

	a := posting.Posting{ID: "42", Title: "Backend Engineer", Company: "SK AX"}
	b := posting.Posting{ID: "42", Title: "Backend Engineer (Seoul)", Company: "SK AX Inc."}

	if posting.FingerprintOf(a) != posting.FingerprintOf(b) {
		t.Error("records sharing a source ID must fingerprint identically")
	}

	c := posting.Posting{ID: "43", Title: "Backend Engineer", Company: "SK AX"}
	if posting.FingerprintOf(a) == posting.FingerprintOf(c) {
		t.Error("distinct source IDs must not collide")
	}
}

func TestFingerprintOf_Normalization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a    posting.Posting
		b    posting.Posting
		same bool
	}{
		{
			name: "case and whitespace drift",
			a:    posting.Posting{Company: "SK AX", Title: "Backend Engineer"},
			b:    posting.Posting{Company: " SK AX ", Title: "backend engineer"},
			same: true,
		},
		{
			name: "internal whitespace collapsed",
			a:    posting.Posting{Company: "SK  AX", Title: "Backend  Engineer"},
			b:    posting.Posting{Company: "SK AX", Title: "Backend Engineer"},
			same: true,
		},
		{
			name: "legal suffix stripped",
			a:    posting.Posting{Company: "SK AX Inc.", Title: "Backend Engineer"},
			b:    posting.Posting{Company: "SK AX", Title: "Backend Engineer"},
			same: true,
		},
		{
			name: "korean entity marker stripped",
			a:    posting.Posting{Company: "(주)에스케이", Title: "백엔드 엔지니어"},
			b:    posting.Posting{Company: "에스케이 주식회사", Title: "백엔드 엔지니어"},
			same: true,
		},
		{
			name: "different companies stay distinct",
			a:    posting.Posting{Company: "SK AX", Title: "Backend Engineer"},
			b:    posting.Posting{Company: "SK Telecom", Title: "Backend Engineer"},
			same: false,
		},
		{
			name: "different titles stay distinct",
			a:    posting.Posting{Company: "SK AX", Title: "Backend Engineer"},
			b:    posting.Posting{Company: "SK AX", Title: "Frontend Engineer"},
			same: false,
		},
		{
			name: "company named exactly a suffix word survives",
			a:    posting.Posting{Company: "Co", Title: "Engineer"},
			b:    posting.Posting{Company: "", Title: "Engineer"},
			same: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fa := posting.FingerprintOf(tt.a)
			fb := posting.FingerprintOf(tt.b)
			if tt.same && fa != fb {
				t.Errorf("expected same fingerprint, got %q and %q", fa, fb)
			}
			if !tt.same && fa == fb {
				t.Errorf("expected distinct fingerprints, both %q", fa)
			}
		})
	}
}

func TestFingerprintOf_SparseRecordsDoNotCollide(t *testing.T) {
	t.Parallel()

	// Missing fields still contribute whatever is present; two unknown
	// postings with different titles must not collapse together.
	a := posting.FingerprintOf(posting.Posting{Title: "Engineer"})
	b := posting.FingerprintOf(posting.Posting{Title: "Designer"})
	if a == b {
		t.Errorf("sparse records collided on %q", a)
	}

	c := posting.FingerprintOf(posting.Posting{Company: "SK AX"})
	d := posting.FingerprintOf(posting.Posting{Company: "Hanwha"})
	if c == d {
		t.Errorf("company-only records collided on %q", c)
	}
}

func TestFingerprintOf_StableAcrossCalls(t *testing.T) {
	t.Parallel()

	p := posting.Posting{Company: "SK AX", Title: "Backend Engineer"}
	if posting.FingerprintOf(p) != posting.FingerprintOf(p) {
		t.Error("fingerprint must be deterministic")
	}
}
