package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"stkpay/pkg/client"
	applog "stkpay/pkg/log"
	"stkpay/pkg/poller"
)

func payCmd(newClient func() *client.Client) *cobra.Command {
	var (
		phone, amount, ref, desc string
		opts                     pollOptions
	)
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Send an STK push and wait for the customer to complete it",
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q", amount)
			}
			c := newClient()
			res, err := c.Initiate(cmd.Context(), client.InitiateRequest{
				PhoneNumber:      phone,
				Amount:           amt,
				AccountReference: ref,
				TransactionDesc:  desc,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Message)
			fmt.Fprintf(out, "Transaction: %s\n", res.TransactionID)
			fmt.Fprintln(out, "Waiting for payment confirmation...")

			result, err := opts.poller(c).Run(cmd.Context(), res.TransactionID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, result.Message)
			if result.Outcome != poller.Succeeded {
				cmd.SilenceUsage = true
				return fmt.Errorf("payment %s", result.Outcome)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "Customer phone number")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount in KES")
	cmd.Flags().StringVar(&ref, "ref", "", "Account reference")
	cmd.Flags().StringVar(&desc, "desc", "", "Transaction description")
	opts.register(cmd)
	_ = cmd.MarkFlagRequired("phone")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("ref")
	return cmd
}

type pollOptions struct {
	interval    float64
	maxAttempts int
}

func (o *pollOptions) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&o.interval, "interval", poller.DefaultInterval.Seconds(), "Seconds between status checks")
	cmd.Flags().IntVar(&o.maxAttempts, "max-attempts", poller.DefaultMaxAttempts, "Status checks before giving up")
}

func (o *pollOptions) poller(f poller.Fetcher) *poller.Poller {
	return poller.New(f,
		poller.WithInterval(seconds(o.interval)),
		poller.WithMaxAttempts(o.maxAttempts),
		poller.WithLogger(applog.Component("poller")),
	)
}
