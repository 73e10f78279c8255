package inventory

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// parseYAML reads the YAML inventory layout:
//
//	all:
//	  hosts: {name: {var: value}}
//	  vars: {}
//	  children: {group: {hosts: ..., vars: ..., children: ...}}
//
// Walking yaml.Node keeps hosts in declaration order.
func (m *Manager) parseYAML(data []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}

	if len(doc.Content) == 0 {
		return nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return fmt.Errorf("inventory root must be a mapping of groups")
	}

	return eachPair(root, func(name string, value *yaml.Node) error {
		return m.parseYAMLGroup(m.group(name), value)
	})
}

func (m *Manager) parseYAMLGroup(group *Group, node *yaml.Node) error {
	if isNull(node) {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("group %s must be a mapping", group.Name)
	}

	return eachPair(node, func(key string, value *yaml.Node) error {
		switch key {
		case "hosts":
			if isNull(value) {
				return nil
			}
			return eachPair(value, func(name string, hostNode *yaml.Node) error {
				vars := map[string]any{}
				if !isNull(hostNode) {
					if err := hostNode.Decode(&vars); err != nil {
						return fmt.Errorf("host %s vars: %w", name, err)
					}
				}
				m.addHost(group, name, vars)

				return nil
			})
		case "vars":
			if isNull(value) {
				return nil
			}
			vars := map[string]any{}
			if err := value.Decode(&vars); err != nil {
				return fmt.Errorf("group %s vars: %w", group.Name, err)
			}
			for k, v := range vars {
				group.Vars[k] = v
			}

			return nil
		case "children":
			if isNull(value) {
				return nil
			}
			return eachPair(value, func(name string, childNode *yaml.Node) error {
				child := m.group(name)
				m.link(group, child)

				return m.parseYAMLGroup(child, childNode)
			})
		default:
			return fmt.Errorf("group %s: unknown key %q", group.Name, key)
		}
	})
}

func eachPair(node *yaml.Node, fn func(key string, value *yaml.Node) error) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		if err := fn(node.Content[i].Value, node.Content[i+1]); err != nil {
			return err
		}
	}

	return nil
}

func isNull(node *yaml.Node) bool {
	return node == nil || (node.Kind == yaml.ScalarNode && node.Tag == "!!null")
}
