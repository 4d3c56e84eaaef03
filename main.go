package main

import "voicecleaner/cmd"

func main() {
	cmd.Execute()
}
