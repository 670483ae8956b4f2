// Command hmetool drives the hierarchical motion estimation engine from
// the command line for manual inspection and benchmarking.
//
// Usage:
//
//	hmetool run [options]       Run one synthetic picture through the pipeline
//	hmetool presets             List the quality presets and their parameters
package main

func main() {
	Execute()
}
