// Command loopmacro records keyboard macros and replays them in loops while
// keeping the avatar on its recorded path using the minimap.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
