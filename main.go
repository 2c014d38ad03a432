package main

import "github.com/localdocs/localdocs-cli/cmd"

func main() {
	cmd.Execute()
}
