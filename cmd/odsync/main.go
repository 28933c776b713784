// Command odsync synchronizes a local directory with a OneDrive personal
// drive: one reconciliation pass by default, or a continuous loop under
// --monitor.
package main

func main() {
	if err := newRootCmd().Execute(); err != nil {
		exitOnError(err)
	}
}
