package main

import "github.com/oshokin/homee/cmd/homee-ctl/cmd"

func main() {
	cmd.Execute()
}
