package pkg

import (
	"log"
	"os"
)

func FuncWithPanic() {
	panic("boom") // want "use of builtin panic is discouraged"
}

func FuncWithFatal() {
	log.Fatal("bad") // want "call to log.Fatal or os.Exit outside main.main"
}

func FuncWithFatalf() {
	log.Fatalf("bad %d", 1) // want "call to log.Fatal or os.Exit outside main.main"
}

func FuncWithExit() {
	os.Exit(1) // want "call to log.Fatal or os.Exit outside main.main"
}

func FuncAllowed() {
	log.Println("ok")
}
