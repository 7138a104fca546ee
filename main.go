package main

import "github.com/audiolibrelab/deskcapture/cmd"

func main() {
	cmd.Execute()
}
