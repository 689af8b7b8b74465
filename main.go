package main

import "github.com/encodeous/weave/cmd"

func main() {
	cmd.Execute()
}
