package handlers

import "github.com/imamik/kubernix/internal/kerrors"

// Process exit codes.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitConfig    = 2
	ExitNetwork   = 3
	ExitProvision = 4
	ExitIO        = 5
)

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch kerrors.KindOf(err) {
	case kerrors.KindConfig:
		return ExitConfig
	case kerrors.KindNetwork:
		return ExitNetwork
	case kerrors.KindProvision:
		return ExitProvision
	case kerrors.KindIO:
		return ExitIO
	default:
		return ExitFailure
	}
}
