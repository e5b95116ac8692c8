package main

import (
	"github.com/nwrussi/openquiz-rooms/internal/cli"
)

func main() {
	cli.Execute()
}
