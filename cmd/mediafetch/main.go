// Command mediafetch runs the media-fetch scheduler (serve) and talks to a
// running instance over its HTTP API.
package main

import (
	"os"

	"mediafetch/cmd/mediafetch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
