package main

import (
	"os"

	"todoq/cmd/todoq/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, nil))
}
