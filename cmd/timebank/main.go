package main

import (
	"os"

	"github.com/Yusufss4/swe573-practice-sub001/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
