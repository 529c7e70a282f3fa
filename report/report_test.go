package report

import (
	"strings"
	"testing"
	"time"

	"github.com/hybridguard/filterengine/models"
)

func TestRenderIncludesBlockedElementsAndDenials(t *testing.T) {
	d := New()

	blocked := []BlockedElement{
		{Tag: "div", Selector: ".ad-banner", Action: "removed"},
		{Tag: "span", Selector: "#tracker", Action: "hidden"},
	}
	denials := []models.ErrorRecord{
		{Message: "blocked due to risk", URL: "https://evil.example/x", NavType: models.NavTypeWindowOpen, IsHighRisk: true, At: time.Unix(0, 0)},
	}
	nav := models.NavigationStats{AllowedCount: 5, BlockedCount: 2}

	out, err := d.Render("https://example.com/page", blocked, denials, nav)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	for _, want := range []string{"ad-banner", "tracker", "evil.example", "Allowed 5", "blocked 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected digest to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRenderHandlesEmptySections(t *testing.T) {
	d := New()
	out, err := d.Render("https://example.com", nil, nil, models.NavigationStats{})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "None") {
		t.Errorf("expected empty-section placeholder, got:\n%s", out)
	}
}
