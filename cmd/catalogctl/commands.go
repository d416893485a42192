package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"jewelry-catalog/internal/database"
	"jewelry-catalog/internal/domain"
	"jewelry-catalog/internal/imagedata"
	"jewelry-catalog/internal/middleware"
	"jewelry-catalog/internal/service"
	"jewelry-catalog/internal/transport"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the catalog schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.database(cmd.Context())
			if err != nil {
				return err
			}
			version, err := db.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d (%s)\n", version, db.Dialect())
			return nil
		},
	}

	migrate.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which migrations are applied without applying any",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.New(a.cfg.Database, a.logger)
			if err != nil {
				return err
			}
			a.db = db

			statuses, err := database.GetMigrationStatus(cmd.Context(), db.DB(), db.Dialect())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tFILE\tSTATE")
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, s.File, state)
			}
			return tw.Flush()
		},
	})

	return migrate
}

func newAddCmd(a *app) *cobra.Command {
	var (
		number   string
		category string
		price    string
	)

	cmd := &cobra.Command{
		Use:   "add IMAGE...",
		Short: "Add a product with one or more image files",
		Long: `Add a product to the catalog. Image files are sniffed, size checked and
stored inline as data URLs. A random product number is generated unless
--number is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if number == "" {
				number = service.GenerateProductNumber()
			}

			maxBytes := a.cfg.Catalog.MaxImageBytes
			if maxBytes <= 0 {
				maxBytes = imagedata.DefaultMaxBytes
			}
			if limit := a.cfg.Catalog.MaxImages; limit > 0 && len(args) > limit {
				return fmt.Errorf("at most %d images allowed, got %d", limit, len(args))
			}

			images, err := imagedata.EncodeFiles(ctx, args, maxBytes)
			if err != nil {
				return err
			}

			req := transport.CreateProductRequest{
				ProductNumber: number,
				Category:      domain.Category(category),
				Images:        images,
			}
			if price != "" {
				p, err := decimal.NewFromString(price)
				if err != nil {
					return fmt.Errorf("invalid price %q: %w", price, err)
				}
				req.Price = &p
			}
			if err := middleware.ValidateRequest(&req); err != nil {
				return formError(err)
			}

			catalog, err := a.catalog(ctx)
			if err != nil {
				return err
			}
			product, err := catalog.CreateProduct(ctx, domain.NewProduct{
				ProductNumber: req.ProductNumber,
				Category:      req.Category,
				Price:         *req.Price,
				Images:        req.Images,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s, %s) with %d image(s)\n",
				product.ProductNumber, product.Category.Title(), product.Price.StringFixed(2), len(product.Images))
			return nil
		},
	}

	cmd.Flags().StringVar(&number, "number", "", "five digit product number (generated when empty)")
	cmd.Flags().StringVar(&category, "category", "", "necklace-set, bangles or earrings")
	cmd.Flags().StringVar(&price, "price", "", "price, e.g. 49.99")
	return cmd
}

func formError(err error) error {
	problems := middleware.FormatValidationErrors(err)
	if len(problems) == 0 {
		return err
	}
	parts := make([]string, 0, len(problems))
	for _, p := range problems {
		parts = append(parts, p.Field+": "+p.Message)
	}
	return errors.New("invalid product: " + strings.Join(parts, "; "))
}

func newListCmd(a *app) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the products of a category, or category counts when none is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			catalog, err := a.catalog(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			if category == "" {
				summaries, err := catalog.CategorySummaries(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "CATEGORY\tTITLE\tPRODUCTS")
				for _, s := range summaries {
					fmt.Fprintf(tw, "%s\t%s\t%d\n", s.ID, s.Title, s.ProductCount)
				}
				return tw.Flush()
			}

			products, err := catalog.GetProductsByCategory(ctx, domain.Category(category))
			if err != nil {
				return err
			}
			writeProducts(tw, products)
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "category to list")
	return cmd
}

func writeProducts(w io.Writer, products []*domain.Product) {
	fmt.Fprintln(w, "NUMBER\tCATEGORY\tPRICE\tIMAGES\tCREATED")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			p.ProductNumber, p.Category, p.Price.StringFixed(2), len(p.Images), p.CreatedAt.Format(time.RFC3339))
	}
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show NUMBER",
		Short: "Show one product and its images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			catalog, err := a.catalog(ctx)
			if err != nil {
				return err
			}
			product, err := catalog.GetProduct(ctx, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "number:   %s\n", product.ProductNumber)
			fmt.Fprintf(out, "category: %s (%s)\n", product.Category.Title(), product.Category)
			fmt.Fprintf(out, "price:    %s\n", product.Price.StringFixed(2))
			fmt.Fprintf(out, "created:  %s\n", product.CreatedAt.Format(time.RFC3339))
			for i, url := range product.Images {
				mime, data, err := imagedata.Decode(url)
				if err != nil {
					fmt.Fprintf(out, "image %d: unreadable (%v)\n", i, err)
					continue
				}
				fmt.Fprintf(out, "image %d: %s, %d bytes\n", i, mime, len(data))
			}
			return nil
		},
	}
}

func newBrowseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Read category names from stdin and show the newest one's products",
		Long: `Each line read from stdin starts a category query and supersedes the previous
one. Only the newest query's products are shown once input ends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			catalog, err := a.catalog(ctx)
			if err != nil {
				return err
			}
			browser := service.NewCategoryBrowser(catalog)

			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				firstErr error
			)
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				category := strings.TrimSpace(scanner.Text())
				if category == "" {
					continue
				}
				run := browser.Start(ctx, domain.Category(category))
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := run()
					if err != nil && !errors.Is(err, service.ErrStaleResult) {
						mu.Lock()
						if firstErr == nil {
							firstErr = err
						}
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read categories: %w", err)
			}
			if firstErr != nil {
				return firstErr
			}

			current := browser.Current()
			if current.Generation == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no category browsed")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d product(s)\n", current.Category.Title(), len(current.Products))
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			writeProducts(tw, current.Products)
			return tw.Flush()
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every product and image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete the catalog without --yes")
			}
			db, err := a.database(cmd.Context())
			if err != nil {
				return err
			}
			store := newStore(db)
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "catalog cleared")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all catalog data")
	return cmd
}

func newTokenCmd(a *app) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin token for the API's admin routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				ttl = time.Duration(a.cfg.Admin.TokenExpiry) * time.Hour
			}
			token, err := middleware.IssueAdminToken(a.cfg.Admin.JWTSecret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "catalog-admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to ADMIN_TOKEN_EXPIRY hours)")
	return cmd
}
