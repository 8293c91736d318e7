package main

import "github.com/nvquang/netprobe/cmd"

// execCmd is indirected so main is testable.
var execCmd = cmd.Execute

func main() {
	execCmd()
}
