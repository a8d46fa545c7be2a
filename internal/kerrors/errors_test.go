package kerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Parallel()
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", base, KindUnknown},
		{"config", ConfigErr("cidr", base), KindConfig},
		{"network", NetworkErr(base), KindNetwork},
		{"io", IOErr("write config", base), KindIO},
		{"provision", Provision(2, base), KindProvision},
		{"wrapped config", fmt.Errorf("loading: %w", ConfigErr("nodes", base)), KindConfig},
		{"wrapped provision", fmt.Errorf("bootstrap: %w", Provision(0, base)), KindProvision},
		{"joined provision first", errors.Join(Provision(1, base), IOErr("release lock", base)), KindProvision},
		{"joined unclassified first", errors.Join(base, fmt.Errorf("stop: %w", Provision(0, base))), KindProvision},
		{"joined unclassified", errors.Join(base, errors.New("other")), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestConstructors_NilPassthrough(t *testing.T) {
	t.Parallel()
	assert.NoError(t, ConfigErr("x", nil))
	assert.NoError(t, NetworkErr(nil))
	assert.NoError(t, IOErr("x", nil))
	assert.NoError(t, Provision(1, nil))
}

func TestProvision_KeepsNodeIndex(t *testing.T) {
	t.Parallel()
	base := errors.New("readiness timeout")
	err := fmt.Errorf("start: %w", Provision(1, base))

	var pe *ProvisionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Node)
	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "node 1")
}

func TestProvision_DoesNotDoubleWrap(t *testing.T) {
	t.Parallel()
	inner := Provision(3, errors.New("exit"))
	outer := Provision(3, inner)
	assert.Same(t, inner, outer)
}

func TestError_Message(t *testing.T) {
	t.Parallel()
	err := ConfigErr("nodes", errors.New("must be between 1 and 255"))
	assert.Equal(t, "config error (nodes): must be between 1 and 255", err.Error())

	err = NetworkErr(errors.New("too small"))
	assert.Equal(t, "network error: too small", err.Error())
}
