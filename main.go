package main

import "github.com/fakeyudi/quickterm/cmd"

func main() {
	cmd.Execute()
}
