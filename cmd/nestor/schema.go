package main

import (
	"context"
	"fmt"
)

// SchemaCmd resolves the default database connection and prints its schema.
type SchemaCmd struct {
	User string `help:"User whose stored connection to resolve." default:"anonymous"`
}

func (c *SchemaCmd) Run(cli *CLI) error {
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

	ctx := context.Background()
	details, err := rt.sql.Resolver().ResolveConnectionDetails(ctx, c.User)
	if err != nil {
		return fmt.Errorf("resolving connection: %w", err)
	}

	schema, err := rt.sql.DescribeSchema(ctx, details)
	if err != nil {
		return err
	}
	fmt.Println(schema)
	return nil
}
