// Command jpcguest runs JPC bitcode guest modules against a scripted host.
package main

func main() {
	Execute()
}
