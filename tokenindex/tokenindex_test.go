package tokenindex

import "testing"

func TestBuildExtractsTokens(t *testing.T) {
	idx := New()
	idx.Build([]string{
		".ad-banner",
		"#sponsored",
		"div.promo",
		`[data-ad-slot="leaderboard"]`,
		"*",
	})

	if !idx.Has("ad-banner") {
		t.Fatal("expected class token ad-banner to be indexed")
	}
	if !idx.Has("sponsored") {
		t.Fatal("expected id token sponsored to be indexed")
	}
	if !idx.Has("promo") {
		t.Fatal("expected class token promo to be indexed")
	}
	if !idx.Has("div") {
		t.Fatal("expected leading tag div to be indexed")
	}
	if !idx.Has("leaderboard") {
		t.Fatal("expected attribute literal leaderboard to be indexed")
	}
	if len(idx.Universal()) != 1 || idx.Universal()[0] != "*" {
		t.Fatalf("expected * to fall into the universal bucket, got %v", idx.Universal())
	}
}

func TestHasSelectorTracksMostRecentBuild(t *testing.T) {
	idx := New()
	idx.Build([]string{".first"})
	if !idx.HasSelector(".first") {
		t.Fatal("expected .first to be tracked after first Build")
	}

	idx.Build([]string{".second"})
	if idx.HasSelector(".first") {
		t.Fatal("expected .first to be cleared after rebuild")
	}
	if !idx.HasSelector(".second") {
		t.Fatal("expected .second to be tracked after rebuild")
	}
}

func TestCandidateSelectorsUnionsTokensAndUniversal(t *testing.T) {
	idx := New()
	idx.Build([]string{".ad", "#tracker", "*"})

	got := idx.CandidateSelectors([]string{"ad"})
	want := map[string]bool{".ad": true, "*": true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want selectors %v", got, want)
	}
	for _, sel := range got {
		if !want[sel] {
			t.Fatalf("unexpected selector %q in candidate set", sel)
		}
	}
}

func TestCaseInsensitiveLeadingTag(t *testing.T) {
	idx := New()
	idx.Build([]string{"DIV.x"})
	if !idx.Has("div") {
		t.Fatal("expected leading tag to be lowercased")
	}
}
