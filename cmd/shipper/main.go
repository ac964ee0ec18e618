// Command shipper publishes CI build artifacts to release pages, file hosts
// and storage services.
package main

import (
	"os"

	"github.com/meigma/shipper/cmd/shipper/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
