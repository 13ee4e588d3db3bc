package main

import "github.com/nudgelabs/nudged/cmd"

func main() {
	cmd.Execute()
}
