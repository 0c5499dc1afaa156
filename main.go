package main

import "github.com/KaramelBytes/edaloom-cli/cmd"

func main() {
	cmd.Execute()
}
