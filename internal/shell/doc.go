// Package shell drives an interactive, line-oriented database shell
// over its standard streams.
//
// The shell under test has no way to say that it has finished answering a
// command. After every command, the driver queues a query that prints a
// sentinel value, and treats the command as complete once the output ends
// with that value.
//
//	drv, err := shell.Start(shell.Config{Path: "sqlite3", Seed: seed})
//	if err != nil {
//		return err
//	}
//	defer drv.Close()
//
//	out, err := drv.Execute("SELECT 1+1;") // "2"
//
// Broken pipes, unexpected end of output, and timeouts are faults: the
// driver terminates the shell and reports the same fault for every later
// call. Use IsFault to tell faults apart from assertion failures.
package shell
