// Command genkey mints a fresh node identity key pair and prints the
// private key hex (for NODE_PRIVATE_KEY) and the on-chain address.
package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"infernode/identity"

	"github.com/ethereum/go-ethereum/crypto"
)

func main() {
	keys, err := identity.GenerateKeyPair()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate key pair: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("NODE_PRIVATE_KEY=%s\n", hex.EncodeToString(crypto.FromECDSA(keys.PrivateKey)))
	fmt.Printf("address=%s\n", keys.Address().Hex())
}
