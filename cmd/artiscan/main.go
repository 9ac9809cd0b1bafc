package main

import "github.com/yorozuya-cybersecurity/artiscan/pkg/cli"

func main() {
	cli.Execute()
}
