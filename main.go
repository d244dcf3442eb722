package main

import "github.com/Yates-Labs/ragify/cmd"

func main() {
	cmd.Execute()
}
