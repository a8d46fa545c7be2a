// Package kubeconfig writes the kubeconfig files for the admin user and for
// every node, pointing at the certificate pairs generated by internal/pki.
package kubeconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"

	"github.com/imamik/kubernix/internal/kerrors"
	"github.com/imamik/kubernix/internal/pki"
)

// ClusterName is the cluster entry shared by all generated files.
const ClusterName = "kubernix"

// Files lists the written kubeconfig paths.
type Files struct {
	Admin string
	// Nodes is indexed like pki.PKI.Nodes.
	Nodes []string
}

// Build returns a kubeconfig for user authenticating with pair against server.
func Build(server string, ca, pair *pki.Pair, user string) *clientcmdapi.Config {
	cfg := clientcmdapi.NewConfig()

	cluster := clientcmdapi.NewCluster()
	cluster.Server = server
	cluster.CertificateAuthority = ca.CertPath
	cfg.Clusters[ClusterName] = cluster

	auth := clientcmdapi.NewAuthInfo()
	auth.ClientCertificate = pair.CertPath
	auth.ClientKey = pair.KeyPath
	cfg.AuthInfos[user] = auth

	kctx := clientcmdapi.NewContext()
	kctx.Cluster = ClusterName
	kctx.AuthInfo = user
	cfg.Contexts[ClusterName] = kctx
	cfg.CurrentContext = ClusterName

	return cfg
}

// WriteAll writes the admin kubeconfig to adminPath and one kubeconfig per
// node into dir.
func WriteAll(dir, adminPath, server string, p *pki.PKI) (*Files, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, kerrors.IOErr("create kubeconfig dir", err)
	}

	files := &Files{Admin: adminPath}
	if err := write(adminPath, Build(server, p.CA, p.Admin, pki.NameAdmin)); err != nil {
		return nil, err
	}

	for _, pair := range p.Nodes {
		path := filepath.Join(dir, pair.Name+".kubeconfig")
		user := "system:node:" + pair.Name
		if err := write(path, Build(server, p.CA, pair, user)); err != nil {
			return nil, err
		}
		files.Nodes = append(files.Nodes, path)
	}
	return files, nil
}

func write(path string, cfg *clientcmdapi.Config) error {
	if err := clientcmd.WriteToFile(*cfg, path); err != nil {
		return kerrors.IOErr(fmt.Sprintf("write kubeconfig %s", filepath.Base(path)), err)
	}
	return nil
}
