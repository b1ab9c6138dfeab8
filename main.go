package main

import "clinrag/cmd"

func main() {
	cmd.Execute()
}
