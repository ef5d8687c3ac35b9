// Package main provides a short description of armcachefi.
// armcachefi is a dynamic binary-instrumentation cache simulator and
// soft-error fault-injection controller for a 32-bit ARM v7-A guest.
//
// For the full CLI, use: go run ./cmd/armcachefi
package main

import "fmt"

func main() {
	fmt.Println("armcachefi - ARM v7-A cache simulator and fault-injection controller")
	fmt.Println("")
	fmt.Println("Usage: armcachefi textBegin textEnd [portNum hostname doInject]")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/armcachefi' for the full CLI.")
	fmt.Println("Run 'go run ./cmd/elfbounds <elf>' to resolve textBegin/textEnd from a binary.")
	fmt.Println("Run 'go run ./cmd/profilereport' for the function-range profiling variant.")
}
