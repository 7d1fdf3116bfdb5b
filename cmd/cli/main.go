package main

import "framechat/cmd/cli/command"

func main() {
	command.Execute()
}
