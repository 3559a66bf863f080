// Package agent classifies agent names as main or sub-agent roles.
package agent

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Builtin agent names shipped by opencode. User-defined agents discovered on
// disk are layered on top of these.
var (
	builtinMain = []string{"plan", "build"}
	builtinSub  = []string{"explore"}
)

// frontmatter is the subset of an agent definition file we care about.
type frontmatter struct {
	Mode string `yaml:"mode"`
}

// Registry knows which agent names dispatch as sub-agents. It is rebuilt from
// the agents directory on construction and on Reload; lookups are pure map
// reads and safe for concurrent use once built.
type Registry struct {
	dir  string
	main map[string]bool
	sub  map[string]bool
}

// NewRegistry builds a registry seeded with the builtin agents plus any
// definitions found under dir. A missing or unreadable directory is not an
// error; the builtins still apply.
func NewRegistry(dir string) *Registry {
	r := &Registry{dir: dir}
	r.Reload()
	return r
}

// Reload rescans the agents directory, replacing previously discovered
// definitions. Builtins are always present; a user definition for a builtin
// name overrides its role.
func (r *Registry) Reload() {
	main := make(map[string]bool, len(builtinMain))
	sub := make(map[string]bool, len(builtinSub))
	for _, name := range builtinMain {
		main[name] = true
	}
	for _, name := range builtinSub {
		sub[name] = true
	}

	for name, mode := range scanDefinitions(r.dir) {
		switch mode {
		case "subagent":
			sub[name] = true
			delete(main, name)
		case "primary":
			main[name] = true
			delete(sub, name)
		}
	}

	r.main = main
	r.sub = sub
}

// IsSubAgent reports whether name identifies a sub-agent. Unknown and empty
// names are not sub-agents.
func (r *Registry) IsSubAgent(name string) bool {
	return r.sub[strings.ToLower(name)]
}

// IsMainAgent reports whether name identifies a main (primary) agent. Empty
// names count as main: sessions recorded before agent attribution existed are
// all top-level.
func (r *Registry) IsMainAgent(name string) bool {
	if name == "" {
		return true
	}
	return r.main[strings.ToLower(name)]
}

// Known reports whether name appears in either role set.
func (r *Registry) Known(name string) bool {
	lower := strings.ToLower(name)
	return r.main[lower] || r.sub[lower]
}

// MainAgents returns the known main agent names.
func (r *Registry) MainAgents() []string {
	return sortedKeys(r.main)
}

// SubAgents returns the known sub-agent names.
func (r *Registry) SubAgents() []string {
	return sortedKeys(r.sub)
}

func sortedKeys(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// scanDefinitions reads every *.md file in dir and returns agent name to mode
// for the ones with parseable frontmatter. Files without frontmatter or with
// an unrecognized mode are skipped.
func scanDefinitions(dir string) map[string]string {
	if dir == "" {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	modes := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		fm, ok := parseFrontmatter(data)
		if !ok || (fm.Mode != "subagent" && fm.Mode != "primary") {
			continue
		}
		name := strings.ToLower(strings.TrimSuffix(entry.Name(), ".md"))
		modes[name] = fm.Mode
	}
	return modes
}

// parseFrontmatter extracts the YAML block between leading "---" markers.
func parseFrontmatter(data []byte) (frontmatter, bool) {
	var fm frontmatter

	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, []byte("\ufeff")), "\n\r")
	if !bytes.HasPrefix(trimmed, []byte("---")) {
		return fm, false
	}
	rest := trimmed[3:]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return fm, false
	}
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return fm, false
	}
	fm.Mode = strings.ToLower(strings.TrimSpace(fm.Mode))
	return fm, true
}
