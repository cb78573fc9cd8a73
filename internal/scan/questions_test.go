package scan

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestDefaultCatalog_DefaultID(t *testing.T) {
	c := DefaultCatalog()
	if c.DefaultID() != "rics_analyze" {
		t.Errorf("DefaultID() = %q, want %q", c.DefaultID(), "rics_analyze")
	}
}

func TestCatalog_Resolve(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		name   string
		id     string
		wantID string
	}{
		{name: "既知のID", id: "general", wantID: "general"},
		{name: "単一画像用", id: "rics_single_image", wantID: "rics_single_image"},
		{name: "空のIDはデフォルト", id: "", wantID: "rics_analyze"},
		{name: "不明なIDはデフォルト", id: "no_such_question", wantID: "rics_analyze"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := c.Resolve(tt.id)
			if q.ID != tt.wantID {
				t.Errorf("Resolve(%q).ID = %q, want %q", tt.id, q.ID, tt.wantID)
			}
			if q.Prompt == "" {
				t.Error("Prompt should not be empty")
			}
		})
	}
}

func TestCatalog_Previews(t *testing.T) {
	c := DefaultCatalog()
	items := c.Previews()

	wantOrder := []string{"rics_analyze", "general", "rics_single_image"}
	if len(items) != len(wantOrder) {
		t.Fatalf("len(Previews()) = %d, want %d", len(items), len(wantOrder))
	}
	for i, id := range wantOrder {
		if items[i].ID != id {
			t.Errorf("items[%d].ID = %q, want %q", i, items[i].ID, id)
		}
	}

	// rics_analyzeは180文字を超えるため切り詰められる
	long := items[0].Prompt
	if !strings.HasSuffix(long, "…") {
		t.Errorf("long prompt preview should end with ellipsis, got %q", long)
	}
	if n := utf8.RuneCountInString(long); n != previewRunes+1 {
		t.Errorf("preview rune count = %d, want %d", n, previewRunes+1)
	}
	if !strings.HasPrefix(c.Resolve("rics_analyze").Prompt, strings.TrimSuffix(long, "…")) {
		t.Error("preview should be a prefix of the full prompt")
	}
}

func TestPreview_ShortPromptUnchanged(t *testing.T) {
	if got := preview("short prompt"); got != "short prompt" {
		t.Errorf("preview() = %q, want unchanged", got)
	}
	exact := strings.Repeat("a", previewRunes)
	if got := preview(exact); got != exact {
		t.Error("prompt of exactly the limit should not be truncated")
	}
}

func TestPreview_CountsRunesNotBytes(t *testing.T) {
	s := strings.Repeat("あ", previewRunes+5)
	got := preview(s)
	if !utf8.ValidString(got) {
		t.Fatal("preview produced invalid UTF-8")
	}
	if n := utf8.RuneCountInString(got); n != previewRunes+1 {
		t.Errorf("rune count = %d, want %d", n, previewRunes+1)
	}
}

func TestNewCatalog_UnknownDefaultFallsBackToFirst(t *testing.T) {
	c := NewCatalog("missing",
		Question{ID: "a", Prompt: "A"},
		Question{ID: "b", Prompt: "B"},
		Question{ID: "a", Prompt: "duplicate"},
	)
	if c.DefaultID() != "a" {
		t.Errorf("DefaultID() = %q, want %q", c.DefaultID(), "a")
	}
	if got := c.Resolve("a").Prompt; got != "A" {
		t.Errorf("duplicate ID should keep the first entry, got %q", got)
	}
	if len(c.Previews()) != 2 {
		t.Errorf("len(Previews()) = %d, want 2", len(c.Previews()))
	}
}
