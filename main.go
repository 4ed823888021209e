package main

import "github.com/fiffu/pricewatch/cmd"

func main() {
	cmd.Execute()
}
