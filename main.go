package main

import "github.com/yorozuya-cybersecurity/bome/pkg/cli"

func main() {
	cli.Execute()
}
