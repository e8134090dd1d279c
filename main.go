package main

import "cryptocagua/cli"

func main() {
	cli.Execute()
}
