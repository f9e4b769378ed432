// Command trackerctl inspects and exports the project tracker workbook from
// the command line.
package main

import (
	"os"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
