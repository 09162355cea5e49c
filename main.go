package main

import (
	"tppd/cmd"
)

func main() {
	cmd.Execute() // initialize cobra commands
}
