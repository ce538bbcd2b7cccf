package optimistic

import (
	"testing"

	"boardcore/pkg/domain"
)

func TestSynthesizeCopiesUserFields(t *testing.T) {
	req := domain.CreateCategoryRequest{Title: "Backlog", Description: "later", Color: "#aabbcc", Labels: []string{"p1"}}
	got := Synthesize(req)
	if got.Title != req.Title || got.Description != req.Description || got.Color != req.Color {
		t.Fatalf("user fields not copied: %+v", got)
	}
	if got.ID != domain.UnconfirmedID || got.Confirmed() || !IsOptimistic(got) {
		t.Fatalf("expected sentinel identity, got %q", got.ID)
	}
	if !got.CreatedAt.IsZero() || !got.UpdatedAt.IsZero() {
		t.Fatalf("expected zero timestamps")
	}
	req.Labels[0] = "mutated"
	if got.Labels[0] != "p1" {
		t.Fatalf("labels alias the request")
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	req := domain.CreateCategoryRequest{Title: "Done", Labels: []string{"a", "b"}}
	if !Synthesize(req).Equal(Synthesize(req)) {
		t.Fatalf("same request must produce equal entities")
	}
	if got := Synthesize(domain.CreateCategoryRequest{Title: "x"}); got.Labels != nil {
		t.Fatalf("nil labels must stay nil")
	}
}
