package main

import "github.com/jlantz/metaci-cli/internal/cli/commands"

func main() {
	commands.Execute()
}
