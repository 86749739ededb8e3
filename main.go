package main

import "github.com/encodeous/icntm/cmd"

func main() {
	cmd.Execute()
}
