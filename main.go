package main

import "github.com/ValentinKolb/litemap/cmd"

func main() {
	cmd.Execute()
}
