package main

import "github.com/Fairlead-Analytics/riskserver/cmd/server/cmd"

func main() {
	cmd.Execute()
}
