package main

import "github.com/ValentinKolb/dCRAQ/cmd"

func main() {
	cmd.Execute()
}
