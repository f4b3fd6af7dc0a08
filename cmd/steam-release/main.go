package main

import "github.com/oshokin/steam-launcher/cmd/steam-release/cmd"

func main() {
	cmd.Execute()
}
