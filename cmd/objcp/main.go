package main

import (
	"log"
	"os"

	"objcp/internal/config"
)

func main() {
	cnf, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := Execute(cnf); err != nil {
		os.Exit(1)
	}
}
