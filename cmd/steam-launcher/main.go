package main

import "github.com/oshokin/steam-launcher/cmd/steam-launcher/cmd"

func main() {
	cmd.Execute()
}
