package main

import "github.com/meatandeat/shopguard/cmd/shopguard/cmd"

func main() {
	cmd.Execute()
}
