package main

import (
	cmd "github.com/getentag/entag/cmd/entag"
	"github.com/getentag/entag/internal"
)

var log = internal.GetLogger()

func main() {
	log.Info("Starting entag")
	cmd.Execute()
}
