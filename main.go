// The main package for the rankrise executable.
package main

import (
	"github.com/Anuar-boop/teamrankrise/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
