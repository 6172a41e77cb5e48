package main

import "tradejoy/internal/cli"

func main() {
	cli.Execute()
}
