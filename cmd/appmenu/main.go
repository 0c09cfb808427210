// Package main provides the CLI entrypoint for appmenu.
package main

func main() {
	Execute()
}
