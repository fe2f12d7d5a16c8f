package main

import (
	"fmt"

	"github.com/danielegr/deep-ifs/benchmarks"
)

// main entry point to all the pipelines
func main() {
	rootCommand := benchmarks.GetRootCommand()
	if err := rootCommand.Execute(); err != nil {
		fmt.Println(err)
	}
}
