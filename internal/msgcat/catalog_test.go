package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedCatalogRenders(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := c.Render("round.correct", map[string]any{"Team": "Equipe 1", "Spaces": 3})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(got, "Equipe 1") || !strings.Contains(got, "3") {
		t.Fatalf("rendered %q", got)
	}

	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatalf("missing key should error")
	}
	if _, err := c.Render("round.correct", map[string]any{}); err == nil {
		t.Fatalf("missing template data should error")
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	body := "room:\n  not_found: \"Código inválido.\"\n"
	if err := os.WriteFile(filepath.Join(dir, "override.yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("room.not_found", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Código inválido." {
		t.Fatalf("override not applied: %q", got)
	}

	// Untouched keys keep the embedded text.
	if _, err := c.Render("game.winner", map[string]any{"Team": "X"}); err != nil {
		t.Fatalf("embedded key lost after override: %v", err)
	}
}
