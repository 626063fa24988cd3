// Command cosim runs co-simulation scenarios and inspects workspace
// archives.
package main

import "github.com/sarchlab/cosim/cosim/cmd"

func main() {
	cmd.Execute()
}
