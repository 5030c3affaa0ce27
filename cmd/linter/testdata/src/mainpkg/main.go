package main

import (
	"log"
	"os"
)

func helper() {
	log.Fatal("bad") // want "call to log.Fatal or os.Exit outside main.main"
}

func main() {
	defer helper()
	log.Fatal("allowed in main.main")
	os.Exit(0)
}
