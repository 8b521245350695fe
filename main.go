package main

import (
	"os"

	"mirrorsync/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
