package main

import "github.com/marcus/dayshift/cmd/dayshift/commands"

func main() {
	commands.Execute()
}
