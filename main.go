package main

import "github.com/nextlevelbuilder/binlogqa/cmd"

func main() {
	cmd.Execute()
}
