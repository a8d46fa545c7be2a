// Package naming provides consistent names for node processes, containers and
// the files a run writes below its root.
//
// Node names follow the pattern kubernix-node-{index}. Container names add a
// short root fingerprint so runs on different roots never collide.
package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Prefix is shared by every generated name.
const Prefix = "kubernix"

// Node returns the name of the node with the given index.
func Node(index int) string {
	return fmt.Sprintf("%s-node-%d", Prefix, index)
}

// Container returns the container name for a node under root.
func Container(root string, index int) string {
	return fmt.Sprintf("%s-%s", Node(index), RootID(root))
}

// RootID is a stable 8-character fingerprint of a root directory.
func RootID(root string) string {
	sum := sha256.Sum256([]byte(root))
	return hex.EncodeToString(sum[:4])
}
