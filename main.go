package main

import "imagematch/cmd"

func main() {
	cmd.Execute()
}
