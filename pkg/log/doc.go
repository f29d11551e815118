/*
Package log provides structured logging for recoverd using zerolog.

Init configures the global Logger once at process start from the
resolved configuration (level, JSON vs console output). Every component
then derives a child logger via WithComponent, optionally narrowed
further with WithPNN, WithGeneration, or WithDatabase so that a single
log line carries enough context to follow one recovery or one election
across every node it touched.
*/
package log
