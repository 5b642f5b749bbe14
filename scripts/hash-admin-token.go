// hash-admin-token generates an admin bearer token, or hashes one read from
// stdin, and prints the ADMIN_TOKEN_HASH value to configure.
//
//	go run scripts/hash-admin-token.go
//	echo -n "$TOKEN" | go run scripts/hash-admin-token.go -stdin
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/smartlink/smartlink/internal/auth"
)

type output struct {
	Token string `json:"token,omitempty"`
	Hash  string `json:"admin_token_hash"`
}

func main() {
	var (
		fromStdin = flag.Bool("stdin", false, "Hash a token read from stdin instead of generating one")
		format    = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	var out output
	if *fromStdin {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			fail("read token: %v", err)
		}
		token := strings.TrimSpace(line)
		if !auth.ValidateTokenFormat(token) {
			fail("token must look like %s<64 hex chars>", auth.AdminTokenPrefix)
		}
		hash, err := auth.HashToken(token)
		if err != nil {
			fail("hash token: %v", err)
		}
		out.Hash = hash
	} else {
		tok, err := auth.GenerateAdminToken()
		if err != nil {
			fail("generate token: %v", err)
		}
		out = output{Token: tok.Plaintext, Hash: tok.Hash}
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	case "plain":
		if out.Token != "" {
			fmt.Printf("Admin token (shown once): %s\n", out.Token)
		}
		fmt.Printf("ADMIN_TOKEN_HASH='%s'\n", out.Hash)
	default:
		fail("unknown format %q", *format)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
