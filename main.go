/*
Copyright © 2022 NAME HERE <EMAIL ADDRESS>

*/
package main

import "github.com/gmofishsauce/romload/cmd"

func main() {
	cmd.Execute()
}
