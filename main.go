package main

import "github.com/KaramelBytes/animelens/cmd"

func main() {
	cmd.Execute()
}
