// simulator is the command-line entrypoint for the YAML-defined HTTP API
// mock server.
package main

import "github.com/pmaojo/apicentric/pkg/cli"

func main() {
	cli.Execute()
}
