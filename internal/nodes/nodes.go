// Package nodes lists the virtual machines backing a cluster.
package nodes

import (
	"context"
	"sync"
)

// Node is a virtual machine and the addresses of its interfaces.
type Node struct {
	Name string
	IPs  []string
	MACs []string
}

// Controller lists the nodes it manages.
type Controller interface {
	ListNodes(ctx context.Context) ([]Node, error)
	TFFolder() string
}

// Nodes caches the node list of a controller.
type Nodes struct {
	controller Controller
	count      int

	mu     sync.Mutex
	cached []Node
}

// New returns a node set expected to hold count nodes.
func New(controller Controller, count int) *Nodes {
	return &Nodes{controller: controller, count: count}
}

// NodesCount is the expected number of nodes.
func (n *Nodes) NodesCount() int {
	return n.count
}

// Controller returns the controller backing the set.
func (n *Nodes) Controller() Controller {
	return n.controller
}

// GetNodes returns the cached nodes, asking the controller when refresh is
// set or nothing was listed yet.
func (n *Nodes) GetNodes(ctx context.Context, refresh bool) ([]Node, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.cached != nil && !refresh {
		return n.cached, nil
	}

	listed, err := n.controller.ListNodes(ctx)
	if err != nil {
		return nil, err
	}
	if listed == nil {
		listed = []Node{}
	}
	n.cached = listed

	return n.cached, nil
}
