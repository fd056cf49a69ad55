package main

import (
	"os"

	"indicadores/internal/exportcli"
)

func main() {
	if err := exportcli.Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
