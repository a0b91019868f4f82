package main

import "github.com/raffleworks/topicdraw/internal/cli"

func main() {
	cli.Execute()
}
