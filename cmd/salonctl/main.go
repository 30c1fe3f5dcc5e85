// Command salonctl is the operator CLI: a local chat REPL against the full
// assistant, an on-demand catalog sync, and session resets.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
