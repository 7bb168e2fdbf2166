// Package proctitle rewrites the command line title of a running process.
//
// The title of a process, as shown by ps and read from /proc/<pid>/cmdline,
// lives in the argument vector region of the process' own address space.
// Changing it from the outside is done in four steps:
//
//  1. LocateRegion reads [arg_start, arg_end) from /proc/<pid>/stat.
//  2. NormalizeTitle checks that the new title fits and pads it with spaces
//     so that it fills the region exactly.
//  3. Attach stops the target with ptrace and waits for the stop.
//  4. Patch reads the word aligned window that contains the region, splices
//     the title into it, writes it back and resumes the target.
//
// SetTitle runs all four steps. Everything that talks to the target goes
// through the Tracer interface; PtraceTracer is the implementation backed by
// ptrace(2).
package proctitle
