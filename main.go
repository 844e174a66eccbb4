package main

import "github.com/reckot/payments/cmd"

func main() {
	cmd.Execute()
}
