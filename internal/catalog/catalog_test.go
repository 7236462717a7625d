package catalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/gamehub/internal/model"
)

const sampleCatalog = `[
  {"id": 1, "title": "Sky Racer", "companyName": "Nimbus", "category": "Racing", "image": "https://example.com/1.png",
   "downloads": "9M", "ratingAvg": 4.6, "reviews": 1200, "size": 120, "description": "Fly fast."},
  {"id": 2, "title": "Puzzle Box", "companyName": "Cubic", "category": "Puzzle", "image": "https://example.com/2.png",
   "downloads": "1M", "ratingAvg": "4.1", "reviews": "300", "size": "45", "description": "Think hard."}
]`

// tagStripper はサニタイザーの呼び出しを確認するためのテスト用実装。
type tagStripper struct{}

func (tagStripper) Sanitize(raw string) string {
	return strings.NewReplacer("<b>", "", "</b>", "").Replace(raw)
}

func TestDecode_ValidCatalog(t *testing.T) {
	apps, err := Decode([]byte(sampleCatalog), nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(apps) != 2 {
		t.Fatalf("len(apps) = %d, want 2", len(apps))
	}
	if apps[0].Title != "Sky Racer" || apps[0].Downloads != "9M" || apps[0].RatingAvg != "4.6" {
		t.Errorf("apps[0] = %+v", apps[0])
	}
	if apps[1].Size != "45" || apps[1].Reviews != "300" {
		t.Errorf("apps[1] = %+v", apps[1])
	}
}

func TestDecode_UnavailablePayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"object instead of array", `{"apps": []}`},
		{"string", `"not a catalog"`},
		{"null", `null`},
		{"malformed", `[{"id": 1,`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apps, err := Decode([]byte(tt.payload), nil)
			if !errors.Is(err, ErrCatalogUnavailable) {
				t.Errorf("err = %v, want ErrCatalogUnavailable", err)
			}
			if apps != nil {
				t.Errorf("apps = %v, want nil", apps)
			}
		})
	}
}

func TestDecode_SkipsInvalidElements(t *testing.T) {
	payload := `[{"id": 1, "title": "ok"}, 42, {"id": "seven"}, {"id": 3, "title": "also ok"}]`

	apps, err := Decode([]byte(payload), nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(apps) != 2 || apps[0].ID != 1 || apps[1].ID != 3 {
		t.Errorf("apps = %+v, want ids 1 and 3", apps)
	}
}

func TestDecode_EmptyArray(t *testing.T) {
	apps, err := Decode([]byte(`[]`), nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(apps) != 0 {
		t.Errorf("len(apps) = %d, want 0", len(apps))
	}
}

func TestDecode_SanitizesTextFields(t *testing.T) {
	payload := `[{"id": 1, "title": "<b>Bold</b>", "companyName": "<b>Co</b>", "category": "Arcade", "description": "<b>desc</b>"}]`

	apps, err := Decode([]byte(payload), tagStripper{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if apps[0].Title != "Bold" || apps[0].CompanyName != "Co" || apps[0].Description != "desc" {
		t.Errorf("apps[0] = %+v", apps[0])
	}
}

func TestFindByID(t *testing.T) {
	apps := []model.AppRecord{{ID: 1, Title: "one"}, {ID: 2, Title: "two"}}

	app, ok := FindByID(apps, 2)
	if !ok || app.Title != "two" {
		t.Errorf("FindByID(2) = %+v, %v", app, ok)
	}

	if _, ok := FindByID(apps, 99); ok {
		t.Error("FindByID(99) should not be found")
	}
	if _, ok := FindByID(nil, 1); ok {
		t.Error("FindByID on empty catalog should not be found")
	}
}

func TestHighlights(t *testing.T) {
	apps := make([]model.AppRecord, 10)
	for i := range apps {
		apps[i].ID = i + 1
	}

	got := Highlights(apps, DefaultHighlightCount)
	if len(got) != 8 || got[0].ID != 1 || got[7].ID != 8 {
		t.Errorf("Highlights = %d apps starting at %d", len(got), got[0].ID)
	}
	if got := Highlights(apps[:3], DefaultHighlightCount); len(got) != 3 {
		t.Errorf("Highlights on short catalog = %d apps, want 3", len(got))
	}
	if got := Highlights(nil, DefaultHighlightCount); len(got) != 0 {
		t.Errorf("Highlights on empty catalog = %d apps, want 0", len(got))
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		raw    string
		want   int
		wantOK bool
	}{
		{"3", 3, true},
		{"12abc", 12, true},
		{" 7", 7, true},
		{"-2", -2, true},
		{"abc", 0, false},
		{"", 0, false},
		{"99999999999999999999", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseID(tt.raw)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseID(%q) = %d, %v; want %d, %v", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
