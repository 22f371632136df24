package main

import "github.com/vietddude/ragtrial/internal/cli"

func main() {
	cli.Execute()
}
