// ao supervises concurrent AI coding agent sessions.
package main

import (
	"os"

	"github.com/agentops/overseer/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
