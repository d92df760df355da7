// bgpfsmctl -- CLI client for the bgpfsmd daemon's admin API.
package main

import "github.com/trungkstn/bgpfsmd/cmd/bgpfsmctl/commands"

func main() {
	commands.Execute()
}
