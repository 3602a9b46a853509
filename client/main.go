package main

import "github.com/Silent-Builder-x/ArcDNA/client/cmd"

func main() {
	cmd.Execute()
}
