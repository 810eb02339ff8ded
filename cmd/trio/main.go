// Command trio renders diagrams from domain, substance and style programs.
package main

func main() {
	Execute()
}
