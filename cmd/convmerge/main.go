package main

import "github.com/codebuildervaibhav/conversate/internal/cli"

func main() {
	cli.Main()
}
