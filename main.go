package main

import "github.com/weiwangfds/racenotes/cmd"

func main() {
	cmd.Execute()
}
