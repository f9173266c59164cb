// Command keygen generates a signing key pair and prints the address a
// verifier should register for it.
//
// # Usage
//
//	go run ./cmd/keygen
//	go run ./cmd/keygen --out=camera.key
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/anirbankanungoe/IoT-Blockchain/crypto"
)

func main() {
	out := flag.String("out", "", "Write the private key to this file instead of stdout")
	flag.Parse()

	addr, key, err := crypto.GenerateKey()
	if err != nil {
		fmt.Printf("Error generating key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("address: %s\n", addr.String())

	if *out != "" {
		if err := os.WriteFile(*out, []byte(key.String()+"\n"), 0o600); err != nil {
			fmt.Printf("Error writing key file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("private key written to %s\n", *out)
		return
	}
	fmt.Printf("private key: %s\n", key.String())
}
