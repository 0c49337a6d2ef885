// Package workers sizes and runs the bounded batch pool. One worker owns one
// file end to end; trials within a file stay sequential inside its engine.
package workers
