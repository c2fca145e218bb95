package procsup

import (
	"os"
	"syscall"
)

// interruptSignal is the graceful-termination signal sent before the 5s
// force-kill budget.
func interruptSignal() os.Signal {
	return syscall.SIGTERM
}
