// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/hound/pkg/auth"
	"github.com/kadirpekel/hound/pkg/config"
	"github.com/kadirpekel/hound/pkg/storage"
)

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	Config string `arg:"" optional:"" name:"config" help:"Configuration file path." placeholder:"PATH"`

	PrintConfig bool `short:"p" name:"print-config" help:"Print the expanded configuration with defaults applied and env vars resolved."`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	path := c.Config
	if path == "" {
		path = cli.Config
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ %s\n", err)
		return configError{err}
	}

	fmt.Printf("✓ configuration is valid")
	if path != "" {
		fmt.Printf(" (%s)", path)
	}
	fmt.Println()

	if c.PrintConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to render configuration: %w", err)
		}
		fmt.Println(string(out))
	}
	return nil
}

// SchemaCmd prints the configuration JSON Schema, for editor completion
// and config tooling.
type SchemaCmd struct{}

func (c *SchemaCmd) Run() error {
	schema, err := config.JSONSchema()
	if err != nil {
		return err
	}
	fmt.Println(schema)
	return nil
}

// KeysCmd manages API keys against the data directory without a running
// server. Useful for bootstrapping the first key.
type KeysCmd struct {
	Create KeysCreateCmd `cmd:"" help:"Create an API key and print its secret."`
	List   KeysListCmd   `cmd:"" help:"List API keys."`
	Revoke KeysRevokeCmd `cmd:"" help:"Revoke an API key by id."`
}

// openKeyStore opens the key store under the configured data directory.
func openKeyStore(cli *CLI) (*auth.KeyStore, func(), error) {
	cfg, err := cli.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	db, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return auth.NewKeyStore(db), func() { _ = db.Close() }, nil
}

type KeysCreateCmd struct {
	Name        string `arg:"" help:"Key name, unique."`
	Description string `help:"Free-form description."`
	Permissions string `help:"Comma-separated permissions (read, search, index, admin)." default:"read,search"`
	ExpiresDays int    `name:"expires-days" help:"Days until the key expires. Zero means no expiry."`
}

func (c *KeysCreateCmd) Run(cli *CLI) error {
	keys, closeStore, err := openKeyStore(cli)
	if err != nil {
		return err
	}
	defer closeStore()

	var perms []auth.Permission
	for _, p := range strings.Split(c.Permissions, ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, auth.Permission(p))
		}
	}
	var expiresAt *time.Time
	if c.ExpiresDays > 0 {
		t := time.Now().AddDate(0, 0, c.ExpiresDays)
		expiresAt = &t
	}

	key, secret, err := keys.Create(context.Background(), c.Name, c.Description, perms, expiresAt)
	if err != nil {
		return err
	}

	fmt.Printf("created key %q (%s)\n\n", key.Name, key.ID)
	fmt.Printf("  %s\n\n", secret)
	fmt.Println("Store the secret now: it is not shown again.")
	return nil
}

type KeysListCmd struct{}

func (c *KeysListCmd) Run(cli *CLI) error {
	keys, closeStore, err := openKeyStore(cli)
	if err != nil {
		return err
	}
	defer closeStore()

	list, err := keys.List(context.Background())
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("no keys")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPERMISSIONS\tACTIVE\tEXPIRES")
	for _, key := range list {
		expires := "-"
		if key.ExpiresAt != nil {
			expires = key.ExpiresAt.Format("2006-01-02")
		}
		perms := make([]string, len(key.Permissions))
		for i, p := range key.Permissions {
			perms[i] = string(p)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			key.ID, key.Name, strings.Join(perms, ","), key.Active, expires)
	}
	return w.Flush()
}

type KeysRevokeCmd struct {
	ID string `arg:"" help:"Key id to revoke."`
}

func (c *KeysRevokeCmd) Run(cli *CLI) error {
	keys, closeStore, err := openKeyStore(cli)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := keys.Revoke(context.Background(), c.ID); err != nil {
		return err
	}
	fmt.Printf("revoked key %s\n", c.ID)
	return nil
}
