// Package main implements the "keygen" CLI (spec.md §6): print a fresh
// KeySet as JSON, suitable for the TAKAGI_KEYSET environment variable.
// A direct port of original_source/takagi/cli.py's keygen, using cobra
// the way Quatton-qwex/apps/qwexctl/cmd wires its root command.
package main

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-jose/go-jose/v4"
	"github.com/rs/xid"
	"github.com/spf13/cobra"
)

const (
	rsaKeyBits = 2048
	octKeyBits = 256
)

var rootCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a fresh Takagi keyset",
	Long: `keygen generates one RSA signing key (RS256) and one symmetric
encryption key (A256GCM), wraps them as a JSON Web Key Set, and prints
it to stdout. The output is suitable for the TAKAGI_KEYSET environment
variable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := generateKeySet()
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(set, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(b))
		return nil
	},
}

func generateKeySet() (*jose.JSONWebKeySet, error) {
	priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generating RSA key: %w", err)
	}

	oct := make([]byte, octKeyBits/8)
	if _, err := rand.Read(oct); err != nil {
		return nil, fmt.Errorf("generating encryption key: %w", err)
	}

	kid := xid.New().String()

	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{Key: priv, KeyID: kid, Algorithm: string(jose.RS256), Use: "sig"},
			{Key: oct, KeyID: kid, Algorithm: string(jose.A256GCM), Use: "enc"},
		},
	}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
