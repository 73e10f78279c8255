package inventory

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/shlex"
	ini "gopkg.in/ini.v1"
)

// parseINI reads the Ansible INI dialect. Host and children sections are
// loaded raw and tokenised with shell rules since their lines are not
// key=value pairs; :vars sections go through the regular ini parser.
func (m *Manager) parseINI(data []byte) error {
	source := append([]byte("["+ungroupedGroup+"]\n"), data...)

	probe, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:        true,
		SkipUnrecognizableLines: true,
	}, source)
	if err != nil {
		return err
	}

	var raw []string
	for _, name := range probe.SectionStrings() {
		if name != ini.DefaultSection && !strings.HasSuffix(name, ":vars") {
			raw = append(raw, name)
		}
	}

	file, err := ini.LoadSources(ini.LoadOptions{
		AllowBooleanKeys:         true,
		KeyValueDelimiters:       "=",
		SpaceBeforeInlineComment: true,
		UnparseableSections:      raw,
	}, source)
	if err != nil {
		return err
	}

	for _, section := range file.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			continue
		}

		groupName, kind, _ := strings.Cut(name, ":")
		group := m.group(groupName)

		switch kind {
		case "":
			if err := m.parseHostLines(group, section.Body()); err != nil {
				return fmt.Errorf("section [%s]: %w", name, err)
			}
		case "children":
			for _, line := range bodyLines(section.Body()) {
				m.link(group, m.group(line))
			}
		case "vars":
			for _, key := range section.Keys() {
				group.Vars[key.Name()] = key.Value()
			}
		default:
			return fmt.Errorf("unsupported section type %q in [%s]", kind, name)
		}
	}

	return nil
}

func (m *Manager) parseHostLines(group *Group, body string) error {
	for _, line := range bodyLines(body) {
		tokens, err := shlex.Split(line)
		if err != nil {
			return fmt.Errorf("tokenize %q: %w", line, err)
		}
		if len(tokens) == 0 {
			continue
		}

		name, vars := splitHostPort(tokens[0])
		for _, token := range tokens[1:] {
			key, value, ok := strings.Cut(token, "=")
			if !ok || key == "" {
				return fmt.Errorf("host %s: expected key=value, got %q", name, token)
			}
			vars[key] = value
		}

		m.addHost(group, name, vars)
	}

	return nil
}

// splitHostPort turns "name:port" into the host name and an ansible_port var.
// IPv6 literals are left untouched.
func splitHostPort(token string) (string, map[string]any) {
	vars := map[string]any{}
	if strings.Count(token, ":") != 1 {
		return token, vars
	}

	name, port, _ := strings.Cut(token, ":")
	if _, err := strconv.Atoi(port); err != nil {
		return token, vars
	}
	vars["ansible_port"] = port

	return name, vars
}

func bodyLines(body string) []string {
	var lines []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		lines = append(lines, line)
	}

	return lines
}
