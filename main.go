package main

import "github.com/inspector-tui/inspector-tui/cmd"

func main() {
	cmd.Execute()
}
