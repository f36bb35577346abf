// Command portward scans TCP port ranges from the command line or serves
// scans as jobs over a REST API.
package main

import "github.com/anstrom/portward/cmd/cli"

// Build information, set by ldflags:
//
//	go build -ldflags "-X main.version=v1.2.0 -X main.commit=$(git rev-parse --short HEAD)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
