// Command opstoken mints an operator token for the runs API and prints the
// Argon2id hash to put in LABACCESS_API_OPERATOR_TOKEN.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/angelmondragon/labaccess-backend/pkg/security"
)

func main() {
	length := flag.Int("length", 40, "length of a generated token")
	stdin := flag.Bool("stdin", false, "hash a token read from stdin instead of generating one")
	flag.Parse()

	token, err := readOrGenerate(*stdin, *length)
	if err != nil {
		fmt.Fprintf(os.Stderr, "token: %v\n", err)
		os.Exit(1)
	}
	hash, err := security.HashToken(token, security.DefaultParams)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash: %v\n", err)
		os.Exit(1)
	}
	if !*stdin {
		fmt.Println("token:", token)
	}
	fmt.Println("hash: ", hash)
}

func readOrGenerate(fromStdin bool, length int) (string, error) {
	if !fromStdin {
		return security.GenerateToken(length)
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		if err != nil {
			return "", err
		}
		return "", fmt.Errorf("empty token")
	}
	return line, nil
}
