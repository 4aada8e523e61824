package main

import "github.com/zostay/sdv-admin/cmd"

func main() {
	cmd.Execute()
}
