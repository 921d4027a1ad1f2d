package main

import (
	"fmt"
	"os"

	"grimm.is/wrtd/cmd"
	"grimm.is/wrtd/internal/brand"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		if err := cmd.RunStart(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", brand.BinaryName, err)
			os.Exit(1)
		}

	case "version":
		fmt.Printf("%s version %s (%s)\n", brand.Name, brand.Version, brand.GitCommit)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - %s

Usage:
  %s <command> [options]

Commands:
  start     Run the daemon in the foreground
            Options: -log-level <level>, -log-json
  version   Print the version
`, brand.Name, brand.Description, brand.BinaryName)
}
