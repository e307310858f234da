package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/nkiryanov/gopherauth/internal/service/auth/tokenmanager"
)

// Print random url-safe token, handy for manual testing and fixtures
func main() {
	n := pflag.IntP("bytes", "b", tokenmanager.BearerTokenBytes, "Random bytes in token")
	count := pflag.IntP("count", "c", 1, "Tokens to generate")
	pflag.Parse()

	for range *count {
		token, err := tokenmanager.GenerateToken(*n)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error while generating token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
	}
}
