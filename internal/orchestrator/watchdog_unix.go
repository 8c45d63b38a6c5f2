//go:build unix

package orchestrator

import "syscall"

// setpgid returns attr with Setpgid set so the watchdog can signal the
// entire process group rather than just the direct child (which would miss
// grandchildren spawned by shell wrappers like `docker compose`).
func setpgid(attr *syscall.SysProcAttr) *syscall.SysProcAttr {
	if attr == nil {
		attr = &syscall.SysProcAttr{}
	}
	attr.Setpgid = true
	return attr
}
