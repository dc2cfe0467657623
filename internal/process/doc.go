// Package process holds the building blocks shared by the launcher and worker
// discovery: the LaunchSpec a caller hands in, the Child handle a successful
// start produces, the Starter that creates OS processes, error classification
// for spawn failures, and per-platform shell command lines.
//
// Children started by ExecStarter get their stdio through os.Pipe pairs, so
// Wait never closes the read ends the output pumps are consuming. On Unix each
// piped child leads its own process group and Kill signals the whole group; on
// Windows Kill runs taskkill over the tree.
package process
