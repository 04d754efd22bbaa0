package main

import "ironup-backend/cmd"

func main() {
	cmd.Run()
}
