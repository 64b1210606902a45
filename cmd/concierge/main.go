package main

import "github.com/lewisedginton/session_concierge/internal/cli"

func main() {
	cli.Execute()
}
