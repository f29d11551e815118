/*
Package helper launches and supervises the short-lived out-of-process
recovery helper used by the parallel-recovery variant: a child process
handed a pipe, a daemon socket name, and a new generation id, expected
to run phases 2-9 itself and report a single 32-bit exit status back
over the pipe before the coordinator kills it.
*/
package helper
