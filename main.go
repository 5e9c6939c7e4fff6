package main

import (
	"os"

	"github.com/cepro/dspcontrol/cli"
)

func main() {
	os.Exit(cli.Execute())
}
