package main

import "github.com/iksnae/tablestream/cmd"

func main() {
	cmd.Execute()
}
