package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/ecoscan/internal/lookup"
	"github.com/ZanzyTHEbar/ecoscan/internal/types"
)

func (a *app) scoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score [file|-]",
		Short: "Score a product JSON document",
		Long: `Score a product read from a file, or from standard input when the
argument is "-" or omitted. Both a bare OpenFoodFacts product and the
{"status":1,"product":{...}} API envelope are accepted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}

			raw, err := readProduct(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}

			tables, err := a.tables()
			if err != nil {
				return err
			}

			result, err := a.service(tables, cmd.ErrOrStderr()).Score(*raw, a.v.GetString(keyRegion), a.v.GetBool(keyExplain))
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), result)
		},
	}
}

func (a *app) lookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <barcode>",
		Short: "Look a barcode up and score it",
		Long: `Look a barcode up in the OpenFoodFacts database for the home region,
falling back to the world database, and score it for --region.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := a.tables()
			if err != nil {
				return err
			}

			svc := a.service(tables, cmd.ErrOrStderr())
			result, err := svc.Lookup(cmd.Context(), args[0], a.v.GetString(keyRegion), a.v.GetBool(keyExplain))
			if err != nil {
				return err
			}
			return a.print(cmd.OutOrStdout(), result)
		},
	}
}

func (a *app) regionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List the configured regions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := a.tables()
			if err != nil {
				return err
			}

			regions := tables.Regions()
			if a.v.GetBool(keyJSON) {
				return writeJSON(cmd.OutOrStdout(), regions)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), renderRegions(regions, a.v.GetString(keyHomeRegion)))
			return err
		},
	}
}

func (a *app) print(w io.Writer, result lookup.Result) error {
	if a.v.GetBool(keyJSON) {
		return writeJSON(w, result)
	}
	_, err := fmt.Fprint(w, renderCard(result))
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readProduct decodes a bare product or an API envelope.
func readProduct(stdin io.Reader, path string) (*types.RawProduct, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read product: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("read product: empty input")
	}

	var envelope types.ProductResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	if envelope.Product != nil {
		return envelope.Product, nil
	}

	var raw types.RawProduct
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	return &raw, nil
}
