package main

import "github.com/drgolem/chipplay/cmd"

func main() {
	cmd.Execute()
}
