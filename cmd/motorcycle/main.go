package main

import "motorcycle-manuals/cmd/motorcycle/commands"

func main() {
	commands.Execute()
}
