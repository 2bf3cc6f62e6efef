package main

import "github.com/brogergvhs/comicsnag/cmd"

func main() {
	cmd.Execute()
}
