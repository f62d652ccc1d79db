package main

import "ambimix/cmd"

func main() {
	cmd.Execute()
}
