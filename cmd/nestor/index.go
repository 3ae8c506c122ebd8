package main

import (
	"context"
	"fmt"
)

// IndexCmd builds the document retrieval index and reports its size.
type IndexCmd struct {
	Path  string `help:"File or directory to index (default: the upload directory)." type:"path"`
	Force bool   `help:"Discard any resident index and rebuild."`
}

func (c *IndexCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	cleanup, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	index, err := rt.cache.BuildOrGet(context.Background(), c.Path, c.Force)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d documents into %d chunks.\n", index.Documents(), index.Units())
	return nil
}
