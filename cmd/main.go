// Command ansera is a manual harness around the pipeline: it reads a
// request (query plus ranked results) as JSON from a file or stdin, runs
// the augmentation flows, and prints the outcome as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"ansera/config"
	"ansera/pipeline"
	"ansera/search"

	"go.uber.org/zap"
)

type Request struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	req, err := readRequest(os.Args[1:])
	if err != nil {
		log.Fatalf("failed to read request: %v", err)
	}

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	aug := p.Run(context.Background(), req.Query, req.Results)

	out, err := json.MarshalIndent(aug, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode augmentation: %v", err)
	}
	fmt.Println(string(out))
}

func readRequest(args []string) (*Request, error) {
	var raw []byte
	var err error
	if len(args) > 0 {
		raw, err = os.ReadFile(args[0])
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, err
	}

	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	return &req, nil
}
