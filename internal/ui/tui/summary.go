// Package tui renders the cluster summary printed once all nodes are up.
package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// NodeRow is one line of the node table.
type NodeRow struct {
	Name    string
	Subnet  string
	Address string
	State   string
	PID     int
}

// Summary describes a running cluster.
type Summary struct {
	Root         string
	CIDR         string
	Runtime      string
	Kubeconfig   string
	APIServiceIP string
	DNSServiceIP string
	Nodes        []NodeRow
}

// IsInteractiveTTY reports whether stdout is a terminal.
func IsInteractiveTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Print writes the summary to w, styled when styled is true.
func Print(w io.Writer, s Summary, styled bool) error {
	var out string
	if styled {
		out = Render(s)
	} else {
		out = RenderPlain(s)
	}
	_, err := io.WriteString(w, out)
	return err
}

// Render returns the styled summary.
func Render(s Summary) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("kubernix: " + s.Root))
	b.WriteString("\n")
	for _, kv := range details(s) {
		fmt.Fprintf(&b, "  %s %s\n", dimStyle.Render(fmt.Sprintf("%-12s", kv[0])), kv[1])
	}

	b.WriteString(sectionStyle.Render("Nodes"))
	b.WriteString("\n")

	nameWidth := 4
	for _, n := range s.Nodes {
		nameWidth = max(nameWidth, lipgloss.Width(n.Name))
	}
	for _, n := range s.Nodes {
		fmt.Fprintf(&b, "  %s  %-*s  %-18s  %-15s  %s\n",
			indicator(n.State), nameWidth, n.Name, n.Subnet, n.Address, pidText(n.PID))
	}
	return b.String()
}

// RenderPlain returns the summary without styling.
func RenderPlain(s Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "kubernix: %s\n", s.Root)
	for _, kv := range details(s) {
		fmt.Fprintf(&b, "  %-12s %s\n", kv[0], kv[1])
	}
	b.WriteString("Nodes\n")
	for _, n := range s.Nodes {
		fmt.Fprintf(&b, "  %s %s %s %s %s\n", n.Name, n.State, n.Subnet, n.Address, pidText(n.PID))
	}
	return b.String()
}

func details(s Summary) [][2]string {
	rows := [][2]string{
		{"cidr", s.CIDR},
		{"kubeconfig", s.Kubeconfig},
		{"api service", s.APIServiceIP},
		{"dns service", s.DNSServiceIP},
	}
	if s.Runtime != "" {
		rows = append(rows, [2]string{"runtime", s.Runtime})
	}
	return rows
}

func indicator(state string) string {
	switch state {
	case "running":
		return readyStyle.Render(checkMark)
	case "failed":
		return failedStyle.Render(crossMark)
	case "starting", "stopping":
		return warningStyle.Render(spinner)
	default:
		return dimStyle.Render(pending)
	}
}

func pidText(pid int) string {
	if pid <= 0 {
		return "-"
	}
	return fmt.Sprintf("pid %d", pid)
}
