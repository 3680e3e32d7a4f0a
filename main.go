package main

import "github.com/Topupio/game-topup-sub000/cmd"

func main() {
	cmd.Execute()
}
