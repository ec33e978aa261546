// Package proc defines the process model shared by the debugger backends
// and the instrumentation plugins: processes, threads and their stop
// information, memory regions and the modules loaded by the target.
//
// Backends such as the minidump reader in pkg/proc/core implement Process,
// plugins reach the running target through Target.
package proc
