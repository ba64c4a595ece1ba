package main

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"

	"traitor/cmd"
)

func main() {
	cmd.Execute()
}

func init() {
	// .env is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
}
