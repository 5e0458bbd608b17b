/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/dawgsconnect/jobboard/cmd"

func main() {
	cmd.Execute()
}
