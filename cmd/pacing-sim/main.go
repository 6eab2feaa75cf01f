// Command pacing-sim runs budget pacing simulations and exposes the bid solver for debugging.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
