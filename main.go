package main

import "github.com/carelink/carelink_backend/cmd"

func main() {
	cmd.Execute()
}
