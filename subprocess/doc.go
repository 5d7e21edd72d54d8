// Package subprocess spawns child processes and exchanges bytes with them
// over anonymous pipes.
//
// The package offers a single synchronous, blocking contract over the two OS
// process models: fork/exec with poll-based readiness on POSIX systems, and
// CreateProcess with handle polling on Windows. Callers build an Options
// value, call Spawn, drive I/O through ReadOutputInto, WriteInput and
// CloseStdin, and finish the relationship with exactly one of Join or Detach.
//
// Ownership of OS resources is strictly linear: every Handle is owned by
// exactly one Stream, and a Subprocess owns its process handle plus the pipe
// ends retained at spawn time. Losing track of a live Subprocess (letting it
// become unreachable without Join or Detach) is a caller bug and terminates
// the program, since it means a live OS process has been orphaned.
//
// Recoverable OS conditions (spawn failures, pipe I/O errors, interrupted
// waits) are returned as errors. Violating a precondition, such as joining
// twice or writing to a closed stream, panics.
package subprocess
