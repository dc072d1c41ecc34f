// Package sysfs reads the kernel's device-attribute tree. Every read is
// independently fallible: a missing or malformed attribute returns ok=false
// and never an error that would abort the caller's probe.
//
// A Tree is rooted at "/sys" in production; tests point it at a synthetic
// tree under t.TempDir().
package sysfs

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Tree is a device-attribute tree rooted at Root.
type Tree struct {
	Root string
}

// New returns a Tree rooted at root, or "/sys" when root is empty.
func New(root string) Tree {
	if root == "" {
		root = "/sys"
	}
	return Tree{Root: root}
}

// Path joins elem under the tree root. Absolute elements are still
// interpreted relative to Root.
func (t Tree) Path(elem ...string) string {
	return filepath.Join(append([]string{t.Root}, elem...)...)
}

// String reads a single-value attribute and returns its trimmed content.
func (t Tree) String(elem ...string) (string, bool) {
	data, err := os.ReadFile(t.Path(elem...))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// Uint reads an unsigned decimal attribute.
func (t Tree) Uint(elem ...string) (uint64, bool) {
	s, ok := t.String(elem...)
	if !ok || s == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Int reads a signed decimal attribute.
func (t Tree) Int(elem ...string) (int64, bool) {
	s, ok := t.String(elem...)
	if !ok || s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// List returns the sorted entry names of a directory in the tree.
func (t Tree) List(elem ...string) ([]string, error) {
	entries, err := os.ReadDir(t.Path(elem...))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ParseKeyValues parses KEY=VALUE lines (uevent, os-release), skipping
// blanks and comments.
func ParseKeyValues(content string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			fields[parts[0]] = parts[1]
		}
	}
	return fields
}

// IsCardDevice returns true for DRM card device names (card0, card1, ...)
// but not connectors (card0-DP-1) or render nodes (renderD128).
func IsCardDevice(name string) bool {
	if !strings.HasPrefix(name, "card") {
		return false
	}
	suffix := name[4:]
	if len(suffix) == 0 {
		return false
	}
	for _, c := range suffix {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
