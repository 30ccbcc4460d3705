package main

import (
	"os"

	"github.com/prwatch/prwatch/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
