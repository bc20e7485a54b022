package main

import "github.com/emrgen/plm/cmd"

func main() {
	cmd.Execute()
}
