// Command mrtdctl is a demo shell over the emrtd library: connect to a
// reader, run BAC, select the eMRTD application, and read one or more
// Elementary Files. It does not parse any Data Group payload — that is
// explicitly out of scope.
package main

func main() {
	Execute()
}
