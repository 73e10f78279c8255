// Package inventory reads Ansible-compatible inventories (INI and YAML) and
// exposes hosts with their resolved variables.
package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/openshift/assisted-test-framework/internal/resources"
)

const (
	allGroup       = "all"
	ungroupedGroup = "ungrouped"
)

// Group is an inventory group with its own vars, hosts and child groups.
type Group struct {
	Name     string
	Vars     map[string]any
	hosts    []*Host
	children []*Group
	parents  []*Group
}

// Hosts returns the hosts declared directly in the group.
func (g *Group) Hosts() []*Host {
	return g.hosts
}

// Children returns the child groups.
func (g *Group) Children() []*Group {
	return g.children
}

// Host is an inventory host.
type Host struct {
	Name   string
	vars   map[string]any
	groups []*Group
}

func (h *Host) String() string {
	return h.Name
}

// Groups returns the names of the groups the host was declared in.
func (h *Host) Groups() []string {
	names := make([]string, 0, len(h.groups))
	for _, g := range h.groups {
		names = append(names, g.Name)
	}

	return names
}

// Vars returns the host variables layered over the vars of every group the
// host belongs to, ancestors first. inventory_hostname is always set.
func (h *Host) Vars() map[string]any {
	depth := map[*Group]int{}
	for _, g := range h.groups {
		collectAncestors(g, depth)
	}

	ordered := make([]*Group, 0, len(depth))
	for g := range depth {
		ordered = append(ordered, g)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if depth[ordered[i]] != depth[ordered[j]] {
			return depth[ordered[i]] < depth[ordered[j]]
		}
		return ordered[i].Name < ordered[j].Name
	})

	vars := map[string]any{}
	for _, g := range ordered {
		for k, v := range g.Vars {
			vars[k] = v
		}
	}
	for k, v := range h.vars {
		vars[k] = v
	}
	vars["inventory_hostname"] = h.Name

	return vars
}

// Var returns a single resolved variable rendered as a string.
func (h *Host) Var(key string) (string, bool) {
	v, ok := h.Vars()[key]
	if !ok || v == nil {
		return "", false
	}

	return fmt.Sprint(v), true
}

// Matches reports whether every criteria key is set on the host with an
// equal value.
func (h *Host) Matches(criteria map[string]string) bool {
	vars := h.Vars()
	for k, want := range criteria {
		got, ok := vars[k]
		if !ok || got == nil || fmt.Sprint(got) != want {
			return false
		}
	}

	return true
}

// collectAncestors records g and its parents with their distance from "all".
func collectAncestors(g *Group, depth map[*Group]int) int {
	if d, ok := depth[g]; ok {
		return d
	}

	depth[g] = 0
	d := 0
	for _, p := range g.parents {
		if pd := collectAncestors(p, depth) + 1; pd > d {
			d = pd
		}
	}
	depth[g] = d

	return d
}

// Manager holds a parsed inventory.
type Manager struct {
	hosts  []*Host
	byName map[string]*Host
	groups map[string]*Group
}

func newManager() *Manager {
	m := &Manager{
		byName: map[string]*Host{},
		groups: map[string]*Group{},
	}
	all := m.group(allGroup)
	m.link(all, m.group(ungroupedGroup))

	return m
}

// Load parses every source into one inventory. Files ending in .yml, .yaml
// or .json are read as YAML, everything else as INI.
func Load(sources ...string) (*Manager, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no inventory source given")
	}

	m := newManager()
	for _, source := range sources {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("read inventory %s: %w", source, err)
		}

		switch strings.ToLower(filepath.Ext(source)) {
		case ".yml", ".yaml", ".json":
			err = m.parseYAML(data)
		default:
			err = m.parseINI(data)
		}
		if err != nil {
			return nil, fmt.Errorf("parse inventory %s: %w", source, err)
		}
	}

	m.finalize()
	resources.LogLevel("debug", "Loaded inventory %v with %d hosts", sources, len(m.hosts))

	return m, nil
}

// Hosts returns every host in declaration order.
func (m *Manager) Hosts() []*Host {
	return append([]*Host(nil), m.hosts...)
}

// Host looks a host up by name.
func (m *Manager) Host(name string) (*Host, bool) {
	h, ok := m.byName[name]
	return h, ok
}

// Group looks a group up by name.
func (m *Manager) Group(name string) (*Group, bool) {
	g, ok := m.groups[name]
	return g, ok
}

func (m *Manager) group(name string) *Group {
	if g, ok := m.groups[name]; ok {
		return g
	}

	g := &Group{Name: name, Vars: map[string]any{}}
	m.groups[name] = g

	return g
}

func (m *Manager) host(name string) *Host {
	if h, ok := m.byName[name]; ok {
		return h
	}

	h := &Host{Name: name, vars: map[string]any{}}
	m.byName[name] = h
	m.hosts = append(m.hosts, h)

	return h
}

func (m *Manager) addHost(g *Group, name string, vars map[string]any) {
	h := m.host(name)
	for k, v := range vars {
		h.vars[k] = v
	}

	for _, existing := range h.groups {
		if existing == g {
			return
		}
	}
	h.groups = append(h.groups, g)
	g.hosts = append(g.hosts, h)
}

func (m *Manager) link(parent, child *Group) {
	for _, c := range parent.children {
		if c == child {
			return
		}
	}
	parent.children = append(parent.children, child)
	child.parents = append(child.parents, parent)
}

// finalize attaches orphan groups to "all" and moves hosts that ended up in
// a real group out of "ungrouped".
func (m *Manager) finalize() {
	all := m.groups[allGroup]
	ungrouped := m.groups[ungroupedGroup]

	for name, g := range m.groups {
		if name != allGroup && len(g.parents) == 0 {
			m.link(all, g)
		}
	}

	for _, h := range m.hosts {
		if len(h.groups) == 0 {
			m.addHost(ungrouped, h.Name, nil)
			continue
		}

		if len(h.groups) > 1 {
			kept := h.groups[:0]
			for _, g := range h.groups {
				if g != ungrouped && g != all {
					kept = append(kept, g)
				}
			}
			if len(kept) > 0 {
				h.groups = kept
			}
		}
	}

	for _, g := range []*Group{all, ungrouped} {
		kept := g.hosts[:0]
		for _, h := range g.hosts {
			for _, hg := range h.groups {
				if hg == g {
					kept = append(kept, h)
					break
				}
			}
		}
		g.hosts = kept
	}
}
