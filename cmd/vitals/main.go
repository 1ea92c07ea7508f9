// Package main is the single-binary entrypoint for Vitals.
// Vitals watches a platform's health signals and heals incidents autonomously.
package main

import "github.com/tutu-network/vitals/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
