// Command l1dsim replays access traces against a simulated L1 data cache.
package main

import "github.com/sarchlab/l1dsim/l1dsim/cmd"

func main() {
	cmd.Execute()
}
