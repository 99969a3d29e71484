// Package netutil implements the port-in-use remediation spec.md §7
// describes: scan a bounded number of consecutive ports when auto_port is
// enabled, otherwise fail fast with a code callers can report.
package netutil

import (
	"fmt"
	"net"

	"github.com/lbliii/bengal-sub007/internal/codes"
)

const maxPortScan = 20

// FindFreePort returns the first free port starting at preferred. If
// autoScan is false, it only checks preferred and returns a codes.Error
// tagged codes.PortInUse on failure.
func FindFreePort(preferred int, autoScan bool) (int, error) {
	limit := 1
	if autoScan {
		limit = maxPortScan
	}

	for i := 0; i < limit; i++ {
		port := preferred + i
		if isFree(port) {
			return port, nil
		}
	}

	return 0, codes.New(codes.PortInUse,
		fmt.Sprintf("no free port found starting at %d (scanned %d)", preferred, limit), nil)
}

func isFree(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
