package ingest

import (
	"context"
	"os/exec"
	"runtime"
)

// HostReachable reports whether host answers a single ping.  Used in auto
// mode to decide between the real source and the signal generator; a missing
// ping binary simply reads as unreachable.
func HostReachable(ctx context.Context, host string) bool {
	countFlag := "-c"
	if runtime.GOOS == "windows" {
		countFlag = "-n"
	}
	cmd := exec.CommandContext(ctx, "ping", countFlag, "1", host)
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}
