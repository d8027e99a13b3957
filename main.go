package main

import "github.com/apptscope/apptscope/cmd"

func main() {
	cmd.Execute()
}
