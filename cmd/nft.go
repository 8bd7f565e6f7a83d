package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/blocktrace/blocktrace/internal/model"
)

var nftCmd = &cobra.Command{
	Use:   "nft",
	Short: "Mint and inspect product NFTs",
}

var nftMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a product NFT",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		var meta model.NFTMetadata
		meta.ProductName, _ = cmd.Flags().GetString("name")
		meta.BatchID, _ = cmd.Flags().GetString("batch")
		meta.Manufacturer, _ = cmd.Flags().GetString("manufacturer")
		meta.ImageURI, _ = cmd.Flags().GetString("image")
		meta.CertificateURI, _ = cmd.Flags().GetString("certificate")
		meta.History, _ = cmd.Flags().GetStringSlice("history")
		if err := model.Validate(meta); err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		s, err := currentSession(ctx, env)
		if err != nil {
			return err
		}
		id, err := env.NFT.MintSimple(ctx, meta, s.Principal)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Minted token %d\n", id)
		return nil
	},
}

var nftGetCmd = &cobra.Command{
	Use:   "get <token-id>",
	Short: "Show an NFT's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := parseTokenID(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		s, err := currentSession(ctx, env)
		if err != nil {
			return err
		}
		meta, err := env.NFT.GetMetadataSimple(ctx, id, s.Principal)
		if err != nil {
			return err
		}
		if meta == nil {
			return eris.Wrapf(model.ErrNotFound, "nft %d", id)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(model.NFT{TokenID: id, Metadata: *meta})
	},
}

var nftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List minted NFTs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		s, err := currentSession(ctx, env)
		if err != nil {
			return err
		}
		nfts, err := env.NFT.GetAllNFTsSimple(ctx, s.Principal)
		if err != nil {
			return err
		}
		if len(nfts) == 0 {
			fmt.Fprintln(os.Stderr, "No NFTs found.")
			return nil
		}
		formatNFTs(os.Stdout, nfts)
		return nil
	},
}

var passportCmd = &cobra.Command{
	Use:   "passport",
	Short: "Mint and read product passports",
}

var passportMintCmd = &cobra.Command{
	Use:   "mint <file.json>",
	Short: "Mint a passport from a JSON document (- reads stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := readInput(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		s, err := currentSession(ctx, env)
		if err != nil {
			return err
		}
		id, err := env.NFT.MintPassport(ctx, data, s.Principal)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Minted passport %d\n", id)
		return nil
	},
}

var passportGetCmd = &cobra.Command{
	Use:   "get <token-id>",
	Short: "Print a passport document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := parseTokenID(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		s, err := currentSession(ctx, env)
		if err != nil {
			return err
		}
		doc, err := env.NFT.GetPassport(ctx, id, s.Principal)
		if err != nil {
			return err
		}
		if doc == nil {
			return eris.Wrapf(model.ErrNotFound, "passport %d", id)
		}
		_, err = fmt.Fprintln(os.Stdout, string(doc))
		return err
	},
}

func init() {
	nftMintCmd.Flags().String("name", "", "product name (required)")
	nftMintCmd.Flags().String("batch", "", "batch ID (required)")
	nftMintCmd.Flags().String("manufacturer", "", "manufacturer (required)")
	nftMintCmd.Flags().String("image", "", "image URI")
	nftMintCmd.Flags().String("certificate", "", "certificate URI")
	nftMintCmd.Flags().StringSlice("history", nil, "history entries")

	nftCmd.AddCommand(nftMintCmd)
	nftCmd.AddCommand(nftGetCmd)
	nftCmd.AddCommand(nftListCmd)
	passportCmd.AddCommand(passportMintCmd)
	passportCmd.AddCommand(passportGetCmd)
	rootCmd.AddCommand(nftCmd)
	rootCmd.AddCommand(passportCmd)
}

func parseTokenID(s string) (model.TokenID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, eris.Wrapf(model.ErrInvalidInput, "token id %q", s)
	}
	return model.TokenID(id), nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return data, eris.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(path)
	return data, eris.Wrapf(err, "read %s", path)
}

// formatNFTs writes a tabular NFT list to out.
func formatNFTs(out io.Writer, nfts []model.NFT) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TOKEN\tPRODUCT\tBATCH\tMANUFACTURER")
	_, _ = fmt.Fprintln(w, "-----\t-------\t-----\t------------")
	for _, n := range nfts {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
			n.TokenID, n.Metadata.ProductName, n.Metadata.BatchID, n.Metadata.Manufacturer)
	}
	_ = w.Flush()
}
