package main

import "github.com/geopix/mosaic/cmd"

func main() {
	cmd.Execute()
}
