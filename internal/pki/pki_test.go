package pki

import (
	"context"
	"net"
	"net/netip"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKeyBits keeps key generation fast.
const testKeyBits = 1024

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{
		Dir:          t.TempDir(),
		Hostname:     "devbox",
		APIServiceIP: netip.MustParseAddr("10.10.192.1"),
		Nodes: []NodeIdentity{
			{Name: "kubernix-node-0", Address: netip.MustParseAddr("10.10.0.2")},
			{Name: "kubernix-node-1", Address: netip.MustParseAddr("10.10.64.2")},
		},
		KeyBits: testKeyBits,
	}
}

func TestGenerate_WritesAllPairs(t *testing.T) {
	t.Parallel()
	opts := testOptions(t)

	p, err := Generate(context.Background(), opts)
	require.NoError(t, err)

	pairs := p.Pairs()
	require.Len(t, pairs, 9)
	assert.Same(t, p.CA, pairs[0])

	for _, pair := range pairs {
		require.NotNil(t, pair)
		cert, key := Paths(opts.Dir, pair.Name)
		assert.FileExists(t, cert)
		assert.FileExists(t, key)
		info, err := os.Stat(key)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), pair.Name)
		if pair != p.CA {
			assert.NoError(t, pair.Cert.CheckSignatureFrom(p.CA.Cert), pair.Name)
		}
	}

	assert.True(t, p.CA.Cert.IsCA)
	assert.Equal(t, "system:masters", p.Admin.Cert.Subject.Organization[0])
	assert.Equal(t, "system:node:kubernix-node-1", p.Nodes[1].Cert.Subject.CommonName)
	assert.Equal(t, "system:nodes", p.Nodes[1].Cert.Subject.Organization[0])
	assert.Equal(t, "service-accounts", p.ServiceAccount.Cert.Subject.CommonName)
}

func TestGenerate_APIServerNames(t *testing.T) {
	t.Parallel()
	opts := testOptions(t)

	p, err := Generate(context.Background(), opts)
	require.NoError(t, err)

	cert := p.APIServer.Cert
	assert.ElementsMatch(t, []string{
		"devbox",
		"kubernetes",
		"kubernetes.default",
		"kubernetes.default.svc",
		"kubernetes.default.svc.cluster",
		"kubernetes.svc.cluster.local",
	}, cert.DNSNames)

	var ips []string
	for _, ip := range cert.IPAddresses {
		ips = append(ips, ip.String())
	}
	assert.ElementsMatch(t, []string{"10.10.0.2", "10.10.64.2", "10.10.192.1", "127.0.0.1"}, ips)
	assert.NoError(t, cert.VerifyHostname("kubernetes.default.svc"))
}

func TestGenerate_ReusesExistingPairs(t *testing.T) {
	t.Parallel()
	opts := testOptions(t)

	first, err := Generate(context.Background(), opts)
	require.NoError(t, err)
	second, err := Generate(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, first.CA.Cert.SerialNumber, second.CA.Cert.SerialNumber)
	assert.Equal(t, first.APIServer.Cert.SerialNumber, second.APIServer.Cert.SerialNumber)
	assert.Equal(t, first.Nodes[0].Cert.SerialNumber, second.Nodes[0].Cert.SerialNumber)
	assert.False(t, first.Admin.Reused)
	assert.True(t, second.CA.Reused)
	assert.True(t, second.Admin.Reused)
}

func TestGenerate_RegeneratesOnChangedAddress(t *testing.T) {
	t.Parallel()
	opts := testOptions(t)

	first, err := Generate(context.Background(), opts)
	require.NoError(t, err)

	opts.Nodes[1].Address = netip.MustParseAddr("10.10.128.2")
	second, err := Generate(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, first.CA.Cert.SerialNumber, second.CA.Cert.SerialNumber)
	assert.Equal(t, first.Nodes[0].Cert.SerialNumber, second.Nodes[0].Cert.SerialNumber)
	assert.NotEqual(t, first.Nodes[1].Cert.SerialNumber, second.Nodes[1].Cert.SerialNumber)
	assert.False(t, second.Nodes[1].Reused)
	assert.NotEqual(t, first.APIServer.Cert.SerialNumber, second.APIServer.Cert.SerialNumber)
	assert.True(t, second.Nodes[1].Cert.IPAddresses[0].Equal(net.ParseIP("10.10.128.2")))
}

func TestGenerate_RegeneratesExpiring(t *testing.T) {
	t.Parallel()
	opts := testOptions(t)
	opts.Validity = 2 * time.Hour

	first, err := Generate(context.Background(), opts)
	require.NoError(t, err)

	later := time.Now().Add(90 * time.Minute)
	opts.Now = func() time.Time { return later }
	second, err := Generate(context.Background(), opts)
	require.NoError(t, err)

	assert.NotEqual(t, first.CA.Cert.SerialNumber, second.CA.Cert.SerialNumber)
	assert.NoError(t, second.Admin.Cert.CheckSignatureFrom(second.CA.Cert))
}

func TestGenerate_CorruptFilesAreReplaced(t *testing.T) {
	t.Parallel()
	opts := testOptions(t)

	_, err := Generate(context.Background(), opts)
	require.NoError(t, err)

	cert, _ := Paths(opts.Dir, NameAdmin)
	require.NoError(t, os.WriteFile(cert, []byte("garbage"), 0o644))

	p, err := Generate(context.Background(), opts)
	require.NoError(t, err)
	assert.NoError(t, p.Admin.Cert.CheckSignatureFrom(p.CA.Cert))
}

func TestGenerate_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Generate(ctx, testOptions(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPaths(t *testing.T) {
	t.Parallel()
	cert, key := Paths("/r/pki", "admin")
	assert.Equal(t, "/r/pki/admin.pem", cert)
	assert.Equal(t, "/r/pki/admin-key.pem", key)
}
