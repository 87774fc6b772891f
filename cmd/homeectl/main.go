// homeectl is a command-line client for a homee hub.
//
// It opens its own session with the hub, so it works with or without the
// bridge running:
//
//	homeectl nodes
//	homeectl node 12
//	homeectl set 12 OnOff 1
//	homeectl mode Away
//	homeectl watch
//	homeectl shell
package main

import "os"

// Version information - set at build time via ldflags
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
