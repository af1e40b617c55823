package main

import "github.com/stillcap/stillcap/cmd/stillcap/commands"

func main() {
	commands.Execute()
}
