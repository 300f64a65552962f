package main

import "github.com/otpower88/grabbot/cmd"

func main() {
	cmd.Execute()
}
