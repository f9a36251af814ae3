package main

import (
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/Adithya-Monish-Kumar-K/corpus-server/pkg/errors"
)

const (
	formatText = "text"
	formatJSON = "json"
)

func validateFormat(format string) error {
	if format != formatText && format != formatJSON {
		return &apperrors.InvalidQueryError{Query: format, Reason: "format must be text or json"}
	}
	return nil
}

func newGetDocumentCmd(g *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "get-document <id>",
		Short: "Print one document by id",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
				return &apperrors.InvalidQueryError{Query: strings.Join(args, " "), Reason: "exactly one document id is required"}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			cfg, err := g.setup(cmd, "warn")
			if err != nil {
				return err
			}
			svc, err := loadService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			doc, err := svc.FindByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout(), format).document(doc)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text or json")
	return cmd
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	var (
		format string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "search <keyword...>",
		Short: "Find documents containing every word of the keyword",
		Long: `Search prints the documents that contain every word of the keyword,
best match first. Several arguments are joined into one keyword.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			keyword := strings.Join(args, " ")
			if err := validateFormat(format); err != nil {
				return err
			}
			if limit < 0 {
				return &apperrors.InvalidQueryError{Query: keyword, Reason: "limit must not be negative"}
			}
			cfg, err := g.setup(cmd, "warn")
			if err != nil {
				return err
			}
			svc, err := loadService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			resp, err := svc.Search(cmd.Context(), keyword, limit)
			if err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout(), format).search(resp)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text or json")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results (0 for all)")
	return cmd
}

func newListCategoriesCmd(g *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list-categories",
		Short: "Print every category with its document count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			cfg, err := g.setup(cmd, "warn")
			if err != nil {
				return err
			}
			svc, err := loadService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			cats, err := svc.ListCategories(cmd.Context())
			if err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout(), format).categories(cats)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text or json")
	return cmd
}

func newListCmd(g *globalOptions) *cobra.Command {
	var (
		format   string
		category string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the documents of a category, or all documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			cfg, err := g.setup(cmd, "warn")
			if err != nil {
				return err
			}
			svc, err := loadService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			docs, err := svc.ListByCategory(cmd.Context(), category)
			if err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout(), format).documents(docs)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text or json")
	cmd.Flags().StringVarP(&category, "category", "c", "", "only list this category")
	return cmd
}
