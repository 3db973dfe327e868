package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/maltedev/regional-product-extractor/internal/models"
	"github.com/maltedev/regional-product-extractor/internal/scraper"
	"github.com/maltedev/regional-product-extractor/internal/session"
	"github.com/maltedev/regional-product-extractor/internal/sink"
)

type extractOptions struct {
	region     string
	device     string
	category   string
	listingCap int
	deliver    bool
}

func newExtractCmd(root *rootOptions) *cobra.Command {
	opts := &extractOptions{}

	cmd := &cobra.Command{
		Use:   "extract <url>",
		Short: "Extract one URL and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, root, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.region, "region", "", "region code to extract under instead of the domain's region")
	cmd.Flags().StringVar(&opts.device, "device", "", "emulated device (desktop or mobile)")
	cmd.Flags().StringVar(&opts.category, "category", "", "category to set on every record")
	cmd.Flags().IntVar(&opts.listingCap, "listing-cap", 0, "maximum records from a listing page")
	cmd.Flags().BoolVar(&opts.deliver, "deliver", false, "also deliver the result to the configured sinks")
	return cmd
}

type extractOutput struct {
	RequestID string                   `json:"request_id"`
	Result    *models.ExtractionResult `json:"result,omitempty"`
	Error     *models.ExtractionError  `json:"error,omitempty"`
}

func runExtract(cmd *cobra.Command, root *rootOptions, opts *extractOptions, rawURL string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, root.cfg, root.logger)
	if err != nil {
		return err
	}
	defer a.close()

	var hint *models.RegionConfig
	if opts.region != "" {
		r, ok := a.regions.ByCode(opts.region)
		if !ok {
			return fmt.Errorf("unknown region %q", opts.region)
		}
		hint = &r
	}

	requestID := uuid.NewString()
	extractOpts := []scraper.Option{scraper.WithSnapshotPrefix(requestID)}
	if opts.device != "" {
		extractOpts = append(extractOpts, scraper.WithDevice(session.Device(opts.device)))
	}
	if opts.category != "" {
		extractOpts = append(extractOpts, scraper.WithCategory(opts.category))
	}
	if opts.listingCap > 0 {
		extractOpts = append(extractOpts, scraper.WithListingCap(opts.listingCap))
	}

	out := extractOutput{RequestID: requestID}
	result, extractErr := a.service.Extract(ctx, rawURL, hint, extractOpts...)
	if extractErr != nil {
		var ee *models.ExtractionError
		if !errors.As(extractErr, &ee) {
			return extractErr
		}
		out.Error = ee
		out.Result = ee.Partial
	} else {
		out.Result = result
		if opts.deliver {
			if err := a.sink.Deliver(ctx, sink.Delivery{RequestID: requestID, Result: result}); err != nil {
				root.logger.Error("delivery failed", "error", err)
			}
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return extractErr
}
