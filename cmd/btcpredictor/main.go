package main

import (
	"btc-predictor/internal/cli"
)

func main() {
	cli.Execute()
}
