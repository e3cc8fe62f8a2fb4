/*
	Copyright 2023 Markus Papenbrock
*/

package main

import "github.com/mpapenbr/lanerace-service-go/cmd"

func main() {
	cmd.Execute()
}
