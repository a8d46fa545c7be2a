// Package labels provides consistent labeling for node containers.
//
// Labels let a later run, or an operator with the runtime CLI, find every
// container that belongs to a root. Keys use the kubernix.io domain prefix.
package labels

import "strconv"

// Standard label keys.
const (
	// KeyRoot identifies the run root a container belongs to.
	KeyRoot = "kubernix.io/root"

	// KeyNode holds the node name.
	KeyNode = "kubernix.io/node"

	// KeyIndex holds the node index.
	KeyIndex = "kubernix.io/index"

	// KeyManagedBy identifies the management system.
	KeyManagedBy = "kubernix.io/managed-by"
)

// ManagedByKubernix is the value of KeyManagedBy.
const ManagedByKubernix = "kubernix"

// LabelBuilder provides a fluent interface for building container labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a new label builder with the root pre-set.
func NewLabelBuilder(root string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyRoot:      root,
			KeyManagedBy: ManagedByKubernix,
		},
	}
}

// WithNode adds the node name and index labels.
func (lb *LabelBuilder) WithNode(name string, index int) *LabelBuilder {
	lb.labels[KeyNode] = name
	lb.labels[KeyIndex] = strconv.Itoa(index)
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// SelectorForRoot returns a label filter matching all containers of a root.
func SelectorForRoot(root string) string {
	return KeyRoot + "=" + root
}
