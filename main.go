package main

import "github.com/kvsfs/kvsfs/cmd"

func main() {
	cmd.Execute()
}
