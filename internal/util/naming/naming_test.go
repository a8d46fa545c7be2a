package naming

import "testing"

func TestNamingFunctions(t *testing.T) {
	root := "/tmp/kubernix-run"

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{
			name:     "Node",
			got:      Node(0),
			expected: "kubernix-node-0",
		},
		{
			name:     "Node double digit",
			got:      Node(12),
			expected: "kubernix-node-12",
		},
		{
			name:     "Container",
			got:      Container(root, 1),
			expected: "kubernix-node-1-" + RootID(root),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestRootID(t *testing.T) {
	a := RootID("/tmp/a")
	if len(a) != 8 {
		t.Errorf("expected 8 characters, got %q", a)
	}
	if a != RootID("/tmp/a") {
		t.Error("RootID must be stable")
	}
	if a == RootID("/tmp/b") {
		t.Error("different roots should yield different IDs")
	}
}
