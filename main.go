package main

import (
	"github.com/joho/godotenv"
	"github.com/naka-gawa/github-mining/cmd"
)

func main() {
	// A missing .env file is fine: the environment may already hold the token.
	_ = godotenv.Load()
	cmd.Execute()
}
