package main

import (
	"fmt"
	"os"

	"github.com/nyxkrage/quotabar/pkg/mcp"
)

func main() {
	s := mcp.NewServer(os.Getenv("QUOTABAR_API_URL"))
	if err := s.Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp server error: %v\n", err)
		os.Exit(1)
	}
}
