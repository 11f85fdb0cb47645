package main

import "media-forge/cmd"

func main() {
	cmd.Execute()
}
