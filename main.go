package main

import "github.com/Tiliavir/billr/cmd"

func main() {
	cmd.Execute()
}
