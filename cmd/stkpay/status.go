package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"stkpay/pkg/client"
)

func statusCmd(newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status [transaction-id]",
		Short: "Show the stored state of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := newClient().Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:        %s\n", tx.ID)
			fmt.Fprintf(out, "Checkout:  %s\n", tx.CheckoutRequestID)
			fmt.Fprintf(out, "Phone:     %s\n", tx.PhoneNumber)
			fmt.Fprintf(out, "Amount:    %s\n", tx.Amount.StringFixed(2))
			fmt.Fprintf(out, "Reference: %s\n", tx.AccountReference)
			fmt.Fprintf(out, "Status:    %s\n", tx.Status)
			if tx.ResultDesc != nil {
				fmt.Fprintf(out, "Result:    %s\n", *tx.ResultDesc)
			}
			if tx.MpesaReceiptNumber != nil {
				fmt.Fprintf(out, "Receipt:   %s\n", *tx.MpesaReceiptNumber)
			}
			if tx.TransactionDate != nil {
				fmt.Fprintf(out, "Paid at:   %s\n", tx.TransactionDate.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func manualCmd(newClient func() *client.Client) *cobra.Command {
	var phone, amount, code, ref string
	cmd := &cobra.Command{
		Use:   "manual",
		Short: "Submit an M-Pesa code for a payment made outside the STK flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid amount %q", amount)
			}
			res, err := newClient().SubmitManual(cmd.Context(), client.ManualPaymentRequest{
				PhoneNumber:      phone,
				Amount:           amt,
				MpesaCode:        code,
				AccountReference: ref,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			fmt.Fprintf(cmd.OutOrStdout(), "Payment: %s\n", res.PaymentID)
			return nil
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number that paid")
	cmd.Flags().StringVar(&amount, "amount", "", "Amount in KES")
	cmd.Flags().StringVar(&code, "code", "", "M-Pesa confirmation code")
	cmd.Flags().StringVar(&ref, "ref", "", "Account reference")
	for _, f := range []string{"phone", "amount", "code", "ref"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
