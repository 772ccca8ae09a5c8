package main

import "civicsync/cmd"

func main() {
	cmd.Execute()
}
