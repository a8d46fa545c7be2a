package orchestrator

import (
	"sync"

	"github.com/imamik/kubernix/internal/node"
)

// ClusterState holds the running nodes of one run in start order.
type ClusterState struct {
	mu      sync.Mutex
	records []*node.Record
}

// Add appends a node that reached Running.
func (s *ClusterState) Add(rec *node.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

// Records returns the nodes in start order.
func (s *ClusterState) Records() []*node.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*node.Record(nil), s.records...)
}

// Len returns the number of tracked nodes.
func (s *ClusterState) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Pop removes and returns the most recently started node, or nil.
func (s *ClusterState) Pop() *node.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return nil
	}
	last := s.records[len(s.records)-1]
	s.records = s.records[:len(s.records)-1]
	return last
}
