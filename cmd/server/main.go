package main

import "github.com/Ycseeasy/explore-with-me/cmd/server/cmd"

func main() {
	cmd.Execute()
}
