package main

import "hlsproxy/cmd"

// our main app worker
func main() {
	cmd.Execute()
}
