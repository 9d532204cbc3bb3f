package main

import "github.com/jhaber/guice/cmd"

func main() {
	cmd.Execute()
}
