package agent

import (
	"os"
	"path/filepath"
	"testing"
)

func writeAgent(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry("")

	for _, name := range []string{"plan", "build"} {
		if !r.IsMainAgent(name) {
			t.Errorf("IsMainAgent(%q) = false, want true", name)
		}
		if r.IsSubAgent(name) {
			t.Errorf("IsSubAgent(%q) = true, want false", name)
		}
	}
	if !r.IsSubAgent("explore") {
		t.Error("IsSubAgent(explore) = false, want true")
	}
}

func TestRegistryEmptyName(t *testing.T) {
	r := NewRegistry("")

	if r.IsSubAgent("") {
		t.Error("empty agent name classified as sub-agent")
	}
	if !r.IsMainAgent("") {
		t.Error("empty agent name not classified as main")
	}
}

func TestRegistryScansDefinitions(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "reviewer.md", "---\nmode: subagent\ndescription: reviews code\n---\nbody\n")
	writeAgent(t, dir, "Architect.md", "---\nmode: primary\n---\n")
	writeAgent(t, dir, "notes.md", "no frontmatter here\n")
	writeAgent(t, dir, "weird.md", "---\nmode: dancing\n---\n")

	r := NewRegistry(dir)

	if !r.IsSubAgent("reviewer") {
		t.Error("reviewer not registered as sub-agent")
	}
	if !r.IsSubAgent("REVIEWER") {
		t.Error("sub-agent lookup should be case-insensitive")
	}
	if !r.IsMainAgent("architect") {
		t.Error("architect not registered as main agent")
	}
	if r.Known("notes") {
		t.Error("file without frontmatter should be skipped")
	}
	if r.Known("weird") {
		t.Error("unrecognized mode should be skipped")
	}
}

func TestRegistryUserOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	writeAgent(t, dir, "explore.md", "---\nmode: primary\n---\n")

	r := NewRegistry(dir)

	if r.IsSubAgent("explore") {
		t.Error("user definition should override builtin role")
	}
	if !r.IsMainAgent("explore") {
		t.Error("explore should be main after override")
	}
}

func TestRegistryReload(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir)
	if r.IsSubAgent("helper") {
		t.Fatal("helper should be unknown before the file exists")
	}

	writeAgent(t, dir, "helper.md", "---\nmode: subagent\n---\n")
	r.Reload()

	if !r.IsSubAgent("helper") {
		t.Error("Reload did not pick up the new definition")
	}
}

func TestRegistryMissingDirectory(t *testing.T) {
	r := NewRegistry(filepath.Join(t.TempDir(), "does-not-exist"))
	if !r.IsMainAgent("build") {
		t.Error("builtins should survive a missing agents directory")
	}
}
