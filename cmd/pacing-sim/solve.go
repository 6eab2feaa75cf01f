package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloudx-io/openpacing/pacing"
)

func newSolveCmd() *cobra.Command {
	var target float64
	cmd := &cobra.Command{
		Use:   "solve bid:spend [bid:spend...]",
		Short: "Solve the ROI bid that reaches a target spend from bid/spend samples",
		Example: `  pacing-sim solve --target 2.5 0.5:1 1:2 1.5:4
  pacing-sim solve --target 1 1:0.5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := parseSamples(args)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(pacing.SolveBid(history, target), 'g', -1, 64))
			return err
		},
	}
	cmd.Flags().Float64VarP(&target, "target", "t", 0, "target spend")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func parseSamples(args []string) ([]pacing.BidSpendSample, error) {
	history := make([]pacing.BidSpendSample, 0, len(args))
	for _, arg := range args {
		bidText, spendText, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("sample %q is not bid:spend", arg)
		}
		bid, err := strconv.ParseFloat(bidText, 64)
		if err != nil {
			return nil, fmt.Errorf("sample %q: invalid bid: %w", arg, err)
		}
		spend, err := strconv.ParseFloat(spendText, 64)
		if err != nil {
			return nil, fmt.Errorf("sample %q: invalid spend: %w", arg, err)
		}
		history = append(history, pacing.BidSpendSample{Bid: bid, Spend: spend})
	}
	return history, nil
}
