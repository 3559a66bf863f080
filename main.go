package main

import "ocmon/cmd"

func main() {
	cmd.Execute()
}
