// Package pki generates the certificate authority and the certificate pairs
// the control plane and every node authenticate with.
//
// Pairs are written as <dir>/<name>.pem and <dir>/<name>-key.pem. A pair that
// already exists, is still valid, is signed by the current CA and carries the
// requested names is reused, so resuming a root keeps its identities.
package pki

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/imamik/kubernix/internal/kerrors"
	"github.com/imamik/kubernix/internal/util/async"
)

// DefaultValidity is the lifetime of generated certificates.
const DefaultValidity = 8760 * time.Hour

// renewBefore is the remaining lifetime below which a pair is regenerated.
const renewBefore = time.Hour

// Pair names.
const (
	NameCA                = "ca"
	NameAdmin             = "admin"
	NameAPIServer         = "kubernetes"
	NameControllerManager = "kube-controller-manager"
	NameProxy             = "kube-proxy"
	NameScheduler         = "kube-scheduler"
	NameServiceAccount    = "service-account"
)

// Pair is a certificate and its private key on disk.
type Pair struct {
	Name     string
	CertPath string
	KeyPath  string
	Cert     *x509.Certificate
	Key      *rsa.PrivateKey
	// Reused is set when the pair was loaded from disk instead of generated.
	Reused bool
}

// Paths returns the certificate and key file paths for name in dir.
func Paths(dir, name string) (cert, key string) {
	return filepath.Join(dir, name+".pem"), filepath.Join(dir, name+"-key.pem")
}

// NodeIdentity names a node that receives its own kubelet pair.
type NodeIdentity struct {
	Name    string
	Address netip.Addr
}

// Options controls generation.
type Options struct {
	Dir          string
	Hostname     string
	APIServiceIP netip.Addr
	Nodes        []NodeIdentity
	KeyBits      int
	Validity     time.Duration
	// Now is replaced in tests.
	Now func() time.Time
}

// PKI holds every generated pair.
type PKI struct {
	Dir               string
	CA                *Pair
	Admin             *Pair
	APIServer         *Pair
	ControllerManager *Pair
	Proxy             *Pair
	Scheduler         *Pair
	ServiceAccount    *Pair
	// Nodes is indexed like Options.Nodes.
	Nodes []*Pair
}

// subject describes one leaf certificate.
type subject struct {
	name   string
	cn     string
	org    string
	dns    []string
	ips    []net.IP
	target **Pair
}

// Generate creates or reuses all pairs below opts.Dir.
func Generate(ctx context.Context, opts Options) (*PKI, error) {
	if opts.KeyBits == 0 {
		opts.KeyBits = DefaultKeyBits
	}
	if opts.Validity == 0 {
		opts.Validity = DefaultValidity
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
		return nil, kerrors.IOErr("create pki dir", err)
	}

	ca, err := ensureCA(opts)
	if err != nil {
		return nil, kerrors.IOErr("certificate authority", err)
	}

	p := &PKI{Dir: opts.Dir, CA: ca, Nodes: make([]*Pair, len(opts.Nodes))}
	dns, ips := Hostnames(opts)

	subjects := []subject{
		{name: NameAdmin, cn: "admin", org: "system:masters", target: &p.Admin},
		{name: NameAPIServer, cn: "kubernetes", org: "kubernetes", dns: dns, ips: ips, target: &p.APIServer},
		{name: NameControllerManager, cn: "system:kube-controller-manager", org: "system:kube-controller-manager", target: &p.ControllerManager},
		{name: NameProxy, cn: "system:kube-proxy", org: "system:node-proxier", target: &p.Proxy},
		{name: NameScheduler, cn: "system:kube-scheduler", org: "system:kube-scheduler", target: &p.Scheduler},
		{name: NameServiceAccount, cn: "service-accounts", org: "Kubernetes", target: &p.ServiceAccount},
	}
	for i, n := range opts.Nodes {
		nodeDNS := []string{n.Name}
		if opts.Hostname != "" && opts.Hostname != n.Name {
			nodeDNS = append(nodeDNS, opts.Hostname)
		}
		var nodeIPs []net.IP
		if n.Address.IsValid() {
			nodeIPs = append(nodeIPs, net.IP(n.Address.AsSlice()))
		}
		subjects = append(subjects, subject{
			name:   n.Name,
			cn:     "system:node:" + n.Name,
			org:    "system:nodes",
			dns:    nodeDNS,
			ips:    nodeIPs,
			target: &p.Nodes[i],
		})
	}

	tasks := make([]async.Task, 0, len(subjects))
	for _, s := range subjects {
		tasks = append(tasks, async.Task{
			Name: s.name,
			Func: func(context.Context) error {
				pair, err := ensureLeaf(opts, ca, s)
				if err != nil {
					return err
				}
				*s.target = pair
				return nil
			},
		})
	}
	if err := async.RunParallel(ctx, tasks, 0); err != nil {
		return nil, kerrors.IOErr("generate certificates", err)
	}
	return p, nil
}

// Pairs returns every pair, CA first and node pairs last.
func (p *PKI) Pairs() []*Pair {
	pairs := []*Pair{p.CA, p.Admin, p.APIServer, p.ControllerManager, p.Proxy, p.Scheduler, p.ServiceAccount}
	return append(pairs, p.Nodes...)
}

// Hostnames returns the DNS names and IP addresses the API server
// certificate is valid for.
func Hostnames(opts Options) ([]string, []net.IP) {
	var ips []net.IP
	for _, n := range opts.Nodes {
		if n.Address.IsValid() {
			ips = append(ips, net.IP(n.Address.AsSlice()))
		}
	}
	if opts.APIServiceIP.IsValid() {
		ips = append(ips, net.IP(opts.APIServiceIP.AsSlice()))
	}
	ips = append(ips, net.IPv4(127, 0, 0, 1).To4())

	var dns []string
	if opts.Hostname != "" {
		dns = append(dns, opts.Hostname)
	}
	dns = append(dns,
		"kubernetes",
		"kubernetes.default",
		"kubernetes.default.svc",
		"kubernetes.default.svc.cluster",
		"kubernetes.svc.cluster.local",
	)
	return dns, ips
}

func ensureCA(opts Options) (*Pair, error) {
	if pair, err := load(opts.Dir, NameCA); err == nil && fresh(pair.Cert, opts.Now()) && pair.Cert.IsCA {
		pair.Reused = true
		return pair, nil
	}

	key, err := generateKey(opts.KeyBits)
	if err != nil {
		return nil, err
	}
	serial, err := serialNumber()
	if err != nil {
		return nil, err
	}
	now := opts.Now()
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "Kubernetes", Organization: []string{"Kubernetes"}},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(opts.Validity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign CA: %w", err)
	}
	return write(opts.Dir, NameCA, der, key)
}

func ensureLeaf(opts Options, ca *Pair, s subject) (*Pair, error) {
	if pair, err := load(opts.Dir, s.name); err == nil && reusable(pair.Cert, ca.Cert, s, opts.Now()) {
		pair.Reused = true
		return pair, nil
	}

	key, err := generateKey(opts.KeyBits)
	if err != nil {
		return nil, err
	}
	serial, err := serialNumber()
	if err != nil {
		return nil, err
	}
	now := opts.Now()
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: s.cn, Organization: []string{s.org}},
		NotBefore:    now.Add(-time.Minute),
		NotAfter:     now.Add(opts.Validity),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:     s.dns,
		IPAddresses:  s.ips,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.Cert, &key.PublicKey, ca.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign %s: %w", s.name, err)
	}
	return write(opts.Dir, s.name, der, key)
}

func reusable(cert, ca *x509.Certificate, s subject, now time.Time) bool {
	if !fresh(cert, now) || cert.CheckSignatureFrom(ca) != nil {
		return false
	}
	if cert.Subject.CommonName != s.cn || !slices.Equal(cert.Subject.Organization, []string{s.org}) {
		return false
	}
	if !slices.Equal(cert.DNSNames, s.dns) || len(cert.IPAddresses) != len(s.ips) {
		return false
	}
	for i := range s.ips {
		if !cert.IPAddresses[i].Equal(s.ips[i]) {
			return false
		}
	}
	return true
}

func fresh(cert *x509.Certificate, now time.Time) bool {
	return now.After(cert.NotBefore) && now.Add(renewBefore).Before(cert.NotAfter)
}

func load(dir, name string) (*Pair, error) {
	certPath, keyPath := Paths(dir, name)
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, err
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	cert, err := decodeCert(certPEM)
	if err != nil {
		return nil, err
	}
	key, err := decodeKey(keyPEM)
	if err != nil {
		return nil, err
	}
	if !key.PublicKey.Equal(cert.PublicKey) {
		return nil, errors.New("key does not match certificate")
	}
	return &Pair{Name: name, CertPath: certPath, KeyPath: keyPath, Cert: cert, Key: key}, nil
}

func write(dir, name string, der []byte, key *rsa.PrivateKey) (*Pair, error) {
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	certPath, keyPath := Paths(dir, name)
	if err := os.WriteFile(keyPath, encodeKey(key), 0o600); err != nil {
		return nil, err
	}
	if err := os.WriteFile(certPath, encodeCert(der), 0o644); err != nil {
		return nil, err
	}
	return &Pair{Name: name, CertPath: certPath, KeyPath: keyPath, Cert: cert, Key: key}, nil
}

func serialNumber() (*big.Int, error) {
	return rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
}
