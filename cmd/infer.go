package main

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonnison/tower-jumps/internal/inference"
	"github.com/jonnison/tower-jumps/internal/ingest"
	"github.com/jonnison/tower-jumps/internal/model"
	"github.com/jonnison/tower-jumps/internal/store"
)

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Infer where a subscriber was",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		subscriber, _ := cmd.Flags().GetString("subscriber")
		method, _ := cmd.Flags().GetString("method")
		rawOutput, _ := cmd.Flags().GetString("output")
		format, _ := cmd.Flags().GetString("format")

		filter, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}
		var output inference.Output
		if rawOutput != "" {
			if output, err = inference.ParseOutput(rawOutput); err != nil {
				return err
			}
		}

		id, err := lookupSubscriber(ctx, env.Store, subscriber)
		if err != nil {
			return err
		}

		res, err := env.Service.Infer(ctx, inference.Request{
			SubscriberID: id,
			Filter:       filter,
			Method:       method,
			Output:       output,
		})
		if err != nil {
			return eris.Wrap(err, "infer")
		}
		if res.InsufficientData() {
			zap.L().Warn("no usable pings in window", zap.Int64("subscriber_id", id))
		}

		withPings, _ := cmd.Flags().GetBool("pings")
		if !withPings {
			res.Pings = nil
		}
		return writeOutput(os.Stdout, format, res)
	},
}

var inferAllCmd = &cobra.Command{
	Use:   "infer-all",
	Short: "Infer every subscriber and write a batch report",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		method, _ := cmd.Flags().GetString("method")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		outPath, _ := cmd.Flags().GetString("out")
		format, _ := cmd.Flags().GetString("format")
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}

		filter, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}

		ids, err := allSubscriberIDs(ctx, env.Store)
		if err != nil {
			return err
		}

		report, err := inference.NewBatchRunner(env.Service, concurrency).Run(ctx, ids, method, filter)
		if err != nil {
			return eris.Wrap(err, "infer-all")
		}

		var out io.Writer = os.Stdout
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return eris.Wrap(err, "create report file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return writeOutput(out, format, report)
	},
}

// lookupSubscriber accepts a numeric id or a subscriber name.
func lookupSubscriber(ctx context.Context, st store.Store, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return 0, eris.New("--subscriber is required")
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		sub, err := st.GetSubscriber(ctx, id)
		if err != nil {
			return 0, eris.Wrapf(err, "subscriber %d", id)
		}
		return sub.ID, nil
	}
	sub, err := st.GetSubscriberByName(ctx, ref)
	if err != nil {
		return 0, eris.Wrapf(err, "subscriber %q", ref)
	}
	return sub.ID, nil
}

const subscriberPage = 500

func allSubscriberIDs(ctx context.Context, st store.Store) ([]int64, error) {
	var ids []int64
	for offset := 0; ; offset += subscriberPage {
		page, err := st.ListSubscribers(ctx, store.SubscriberFilter{Limit: subscriberPage, Offset: offset})
		if err != nil {
			return nil, eris.Wrap(err, "list subscribers")
		}
		for _, s := range page {
			ids = append(ids, s.ID)
		}
		if len(page) < subscriberPage {
			return ids, nil
		}
	}
}

func filterFromFlags(cmd *cobra.Command) (model.PingFilter, error) {
	var f model.PingFilter
	for name, dst := range map[string]**time.Time{"start": &f.Start, "end": &f.End} {
		raw, _ := cmd.Flags().GetString(name)
		if raw == "" {
			continue
		}
		t, err := ingest.ParseTime(raw)
		if err != nil {
			return f, eris.Wrapf(err, "--%s", name)
		}
		*dst = &t
	}
	return f, f.Validate()
}

func addWindowFlags(cmd *cobra.Command) {
	cmd.Flags().String("method", "", "model id: 1 majority vote, 2 clustering (default from config)")
	cmd.Flags().String("start", "", "window start, inclusive (RFC 3339 or MM/DD/YY HH:MM, UTC)")
	cmd.Flags().String("end", "", "window end, inclusive")
	cmd.Flags().String("format", "json", "output format: json or yaml")
}

func init() {
	addWindowFlags(inferCmd)
	inferCmd.Flags().String("subscriber", "", "subscriber id or name (required)")
	inferCmd.Flags().String("output", "", "summary or timeline (default from config)")
	inferCmd.Flags().Bool("pings", false, "include the pings considered")
	_ = inferCmd.MarkFlagRequired("subscriber")

	addWindowFlags(inferAllCmd)
	inferAllCmd.Flags().Int("concurrency", 0, "parallel subscribers (default from config)")
	inferAllCmd.Flags().String("out", "", "write the report to this file instead of stdout")

	rootCmd.AddCommand(inferCmd, inferAllCmd)
}
