// Command gossipsim runs gossip-learning simulations.
package main

import "github.com/sarchlab/gossiplearn/gossipsim/cmd"

func main() {
	cmd.Execute()
}
