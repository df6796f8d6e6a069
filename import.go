package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Seednode/pricebox/games/priceguess"
)

// readSetFile decodes a JSON array of set definitions, the format of the
// game_sets.json files written by earlier releases.
func readSetFile(path string) ([]priceguess.SetDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var defs []priceguess.SetDefinition
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return defs, nil
}

func newImportCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import <game_sets.json>",
		Short: "Import item sets from a JSON file into the database.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := readSetFile(args[0])
			if err != nil {
				return err
			}

			db, sets, err := openSets(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			out := cmd.OutOrStdout()

			var imported, replaced, failed int
			for i, res := range sets.Import(cmd.Context(), defs) {
				def := defs[i]
				if res.Err != nil {
					failed++
					errorf("set %d (%s): %v", def.ID, def.Name, res.Err)
					continue
				}

				imported++
				set := res.Set

				switch {
				case res.Replaced:
					replaced++
					fmt.Fprintf(out, "Replaced existing set %d with %q\n", set.ID, set.Name)
				case res.SourceID != set.ID:
					fmt.Fprintf(out, "Imported set %d (%s) as set %d\n", res.SourceID, set.Name, set.ID)
				}

				logf(cfg, "SETS: Imported set %d (%s, %d items)", set.ID, set.Name, set.Len())
			}

			fmt.Fprintf(out, "Imported %d of %d item sets into %s (%d replaced)\n", imported, len(defs), cfg.database, replaced)

			if failed > 0 {
				return fmt.Errorf("%d item sets failed validation", failed)
			}
			return nil
		},
	}
}
