package main

import "github.com/jvanek/facegroups/cmd"

func main() {
	cmd.Execute()
}
