package main

import "github.com/quernstone/portcullis/cmd"

func main() {
	cmd.Execute()
}
