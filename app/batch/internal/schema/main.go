package main

import (
	"fmt"
	"log"
	"os"

	"github.com/atsdesk/atsdesk/app/batch"
)

//go:generate go run . ../../../../manifest.schema.json

func main() {
	data, err := batch.ManifestSchema()
	if err != nil {
		log.Fatalf("failed to make schema: %v", err)
	}

	outputPath := "manifest.schema.json"
	if len(os.Args) > 1 {
		outputPath = os.Args[1]
	}

	if err := os.WriteFile(outputPath, data, 0o600); err != nil { //nolint:gosec // schema file is not sensitive
		log.Fatalf("failed to write schema file: %v", err)
	}

	fmt.Printf("Schema generated successfully at %s\n", outputPath)
}
