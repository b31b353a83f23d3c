// Command mabel runs the Mabel memoir interview service and CLI.
package main

import "github.com/mabel-stories/mabel/internal/cli"

func main() {
	cli.Execute()
}
