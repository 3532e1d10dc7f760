package sandbox

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// limitResources caps the heap and CPU time of an evaluation process
func limitResources(memory uint64) {
	limits := []struct {
		resource int
		value    uint64
	}{
		{unix.RLIMIT_DATA, memory},
		{unix.RLIMIT_CPU, uint64(Timeout.Seconds()) * 2},
	}
	for _, l := range limits {
		if err := unix.Setrlimit(l.resource, &unix.Rlimit{Cur: l.value, Max: l.value}); err != nil {
			fmt.Fprintf(os.Stderr, "setrlimit %d: %v\n", l.resource, err)
		}
	}
}
