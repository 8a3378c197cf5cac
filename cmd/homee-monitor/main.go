package main

import "github.com/oshokin/homee/cmd/homee-monitor/cmd"

func main() {
	cmd.Execute()
}
