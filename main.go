package main

import "minisite/cmd"

func main() {
	cmd.Execute()
}
