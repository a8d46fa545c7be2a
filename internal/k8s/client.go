// Package k8s provides a Kubernetes client wrapper used to confirm that
// started nodes registered with the API server.
package k8s

import (
	"context"
	"fmt"
	"slices"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps the Kubernetes API operations kubernix needs.
type Client struct {
	clientset kubernetes.Interface
}

// NewClient creates a new Kubernetes client from a kubeconfig file.
func NewClient(kubeconfigPath string) (*Client, error) {
	config, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return &Client{clientset: clientset}, nil
}

// NewClientFromClientset wraps an existing clientset.
func NewClientFromClientset(cs kubernetes.Interface) *Client {
	return &Client{clientset: cs}
}

// ReadyNodes returns the sorted names of nodes whose Ready condition is true.
func (c *Client) ReadyNodes(ctx context.Context) ([]string, error) {
	list, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	var ready []string
	for i := range list.Items {
		if isNodeReady(&list.Items[i]) {
			ready = append(ready, list.Items[i].Name)
		}
	}
	slices.Sort(ready)
	return ready, nil
}

// isNodeReady checks if a node reports the Ready condition.
func isNodeReady(node *corev1.Node) bool {
	for _, condition := range node.Status.Conditions {
		if condition.Type == corev1.NodeReady {
			return condition.Status == corev1.ConditionTrue
		}
	}
	return false
}
