// Command ttsbatch batch-converts long text into narrated audio through
// the ElevenLabs synthesis API, with credential rotation, proxy rotation,
// retry, and chunk merging.
package main

import (
	"fmt"
	"os"
)

func main() {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ttsbatch: %v\n", err)
		os.Exit(1)
	}
}
