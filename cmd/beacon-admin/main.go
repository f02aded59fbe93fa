// cmd/beacon-admin/main.go
package main

func main() {
	Execute()
}
