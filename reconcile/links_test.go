package reconcile

import "testing"

func TestLinkExtractor(t *testing.T) {
	e := NewLinkExtractor()

	t.Run("finds frameio short link", func(t *testing.T) {
		found := e.Extract("Updated Frame.io: https://f.io/xyz789")
		if found["frameio_url"] != "https://f.io/xyz789" {
			t.Errorf("expected frameio_url, got %v", found)
		}
	})

	t.Run("matches frameio subdomains", func(t *testing.T) {
		found := e.Extract("review at https://app.frame.io/projects/42")
		if found["frameio_url"] != "https://app.frame.io/projects/42" {
			t.Errorf("expected frameio_url, got %v", found)
		}
	})

	t.Run("google doc needs document path", func(t *testing.T) {
		found := e.Extract("script: https://docs.google.com/document/d/abc123/edit")
		if found["script_url"] == "" {
			t.Errorf("expected script_url, got %v", found)
		}

		found = e.Extract("sheet: https://docs.google.com/spreadsheets/d/abc/edit")
		if _, ok := found["script_url"]; ok {
			t.Errorf("spreadsheet should not match script_url, got %v", found)
		}
	})

	t.Run("first link of a kind wins", func(t *testing.T) {
		found := e.Extract("https://f.io/first then https://f.io/second")
		if found["frameio_url"] != "https://f.io/first" {
			t.Errorf("expected first link, got %v", found)
		}
	})

	t.Run("unrecognized hosts ignored", func(t *testing.T) {
		found := e.Extract("see https://example.com/page")
		if len(found) != 0 {
			t.Errorf("expected no links, got %v", found)
		}
	})

	t.Run("trailing punctuation trimmed", func(t *testing.T) {
		found := e.Extract("done, see https://f.io/xyz789.")
		if found["frameio_url"] != "https://f.io/xyz789" {
			t.Errorf("expected trimmed link, got %v", found)
		}
	})
}
