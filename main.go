package main

import "github.com/linqiu/ai-analyst/cmd"

func main() {
	cmd.Execute()
}
