// Package main implements the scriptgate CLI.
package main

func main() {
	Execute()
}
