// Package main provides the license key generation and inspection CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/glaciersoft/snowgate/internal/db"
	"github.com/glaciersoft/snowgate/internal/license"
	"github.com/glaciersoft/snowgate/internal/models"
	wire "github.com/glaciersoft/snowgate/pkg/models"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "snowgate-keygen",
		Short:         "Generate and inspect SnowGate license keys",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newGenerateCmd(), newInspectCmd(), newVerifyCmd(), newCustomerCmd())
	return root
}

// codecFromEnv builds the key codec from SNOWGATE_LICENSE_SECRET.
func codecFromEnv() (*license.Codec, error) {
	secret := os.Getenv("SNOWGATE_LICENSE_SECRET")
	if secret == "" {
		return nil, errors.New("SNOWGATE_LICENSE_SECRET must be set")
	}
	return license.NewCodec([]byte(secret)), nil
}

func newGenerateCmd() *cobra.Command {
	var (
		tier       string
		org        string
		devSeats   int
		stakeSeats int
		expires    string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a signed license key",
		Long: `Generate a signed license key for a customer.

Seat counts of 0 mean unlimited. The expiry date is interpreted as
end of day UTC.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := codecFromEnv()
			if err != nil {
				return err
			}

			day, err := time.ParseInLocation("2006-01-02", expires, time.UTC)
			if err != nil {
				return fmt.Errorf("parse expiry date %q: %w", expires, err)
			}

			key, err := codec.Encode(license.KeyFields{
				Tier:             license.Tier(tier),
				Org:              org,
				DeveloperSeats:   seatCount(devSeats),
				StakeholderSeats: seatCount(stakeSeats),
				ExpiresAt:        day,
			})
			if err != nil {
				return err
			}

			fmt.Println(key)
			return nil
		},
	}

	cmd.Flags().StringVar(&tier, "tier", "", "License tier (team, professional, enterprise)")
	cmd.Flags().StringVar(&org, "org", "", "Customer org token (dash-free)")
	cmd.Flags().IntVar(&devSeats, "dev-seats", 0, "Developer seat count (0 = unlimited)")
	cmd.Flags().IntVar(&stakeSeats, "stakeholder-seats", 0, "Stakeholder seat count (0 = unlimited)")
	cmd.Flags().StringVar(&expires, "expires", "", "Expiry date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("tier")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("expires")

	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect KEY",
		Short: "Decode and print a license key's fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := codecFromEnv()
			if err != nil {
				return err
			}

			fields, err := codec.Decode(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Tier:              %s\n", fields.Tier)
			fmt.Printf("Org:               %s\n", fields.Org)
			fmt.Printf("Developer seats:   %s\n", seatLabel(fields.DeveloperSeats))
			fmt.Printf("Stakeholder seats: %s\n", seatLabel(fields.StakeholderSeats))
			fmt.Printf("Expires:           %s\n", fields.ExpiresAt.Format(time.RFC3339))
			fmt.Printf("Features:          %v\n", license.FeatureNames(fields.Tier))
			return nil
		},
	}
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify KEY",
		Short: "Verify a license key's checksum and expiry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := codecFromEnv()
			if err != nil {
				return err
			}

			fields, err := codec.Decode(args[0])
			if err != nil {
				return fmt.Errorf("key does not verify: %w", err)
			}
			if time.Now().After(fields.ExpiresAt) {
				return fmt.Errorf("key verified but expired on %s", fields.ExpiresAt.Format("2006-01-02"))
			}

			fmt.Println("OK")
			return nil
		},
	}
}

func newCustomerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "customer",
		Short: "Provision customers in the authority database",
	}
	cmd.AddCommand(newCustomerCreateCmd(), newCustomerSetSeatsCmd())
	return cmd
}

func newCustomerCreateCmd() *cobra.Command {
	var (
		org        string
		name       string
		tier       string
		devSeats   int
		stakeSeats int
		expires    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a customer record",
		Long: `Create a customer record in the authority database.

Seat counts of 0 mean unlimited. The expiry date is interpreted as
end of day UTC, matching license key expiry. Mint the matching key
with 'snowgate-keygen generate' afterwards.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !license.Tier(tier).IsValid() {
				return fmt.Errorf("unknown tier %q: want one of %v", tier, license.ValidTiers())
			}
			expiresAt, err := endOfDay(expires)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			database, err := databaseFromEnv(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			customer := models.NewCustomer(org, name, tier, seatCount(devSeats), seatCount(stakeSeats), expiresAt)
			if err := database.CreateCustomer(ctx, customer); err != nil {
				return err
			}

			fmt.Printf("Created customer %s (org %s, %s seats %s/%s, expires %s)\n",
				customer.ID, customer.Org, customer.Tier,
				seatLabel(customer.DeveloperSeats), seatLabel(customer.StakeholderSeats),
				customer.ExpiresAt.Format("2006-01-02"))
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "Customer org token (dash-free)")
	cmd.Flags().StringVar(&name, "name", "", "Customer display name")
	cmd.Flags().StringVar(&tier, "tier", "", "License tier (team, professional, enterprise)")
	cmd.Flags().IntVar(&devSeats, "dev-seats", 0, "Developer seat count (0 = unlimited)")
	cmd.Flags().IntVar(&stakeSeats, "stakeholder-seats", 0, "Stakeholder seat count (0 = unlimited)")
	cmd.Flags().StringVar(&expires, "expires", "", "Expiry date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("tier")
	_ = cmd.MarkFlagRequired("expires")

	return cmd
}

func newCustomerSetSeatsCmd() *cobra.Command {
	var (
		org        string
		devSeats   int
		stakeSeats int
	)

	cmd := &cobra.Command{
		Use:   "set-seats",
		Short: "Update a customer's per-role seat totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			database, err := databaseFromEnv(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			customer, err := database.GetCustomerByOrg(ctx, org)
			if err != nil {
				return fmt.Errorf("look up customer %q: %w", org, err)
			}
			if err := database.UpdateCustomerSeats(ctx, customer.ID, seatCount(devSeats), seatCount(stakeSeats)); err != nil {
				return err
			}

			fmt.Printf("Updated %s seats to %s/%s\n", org, seatLabel(seatCount(devSeats)), seatLabel(seatCount(stakeSeats)))
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "Customer org token")
	cmd.Flags().IntVar(&devSeats, "dev-seats", 0, "Developer seat count (0 = unlimited)")
	cmd.Flags().IntVar(&stakeSeats, "stakeholder-seats", 0, "Stakeholder seat count (0 = unlimited)")
	_ = cmd.MarkFlagRequired("org")

	return cmd
}

// databaseFromEnv connects to the authority database named by DATABASE_URL.
func databaseFromEnv(ctx context.Context) (*db.DB, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, errors.New("DATABASE_URL must be set")
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()

	cfg := db.DefaultConfig(url)
	cfg.MaxConns = 5
	cfg.MinConns = 1
	return db.New(ctx, cfg, logger)
}

// endOfDay parses a YYYY-MM-DD date to 23:59:59 UTC, the same reference
// the key codec uses for expiry.
func endOfDay(date string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse expiry date %q: %w", date, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, time.UTC), nil
}

func seatCount(flag int) int {
	if flag == 0 {
		return wire.UnlimitedSeats
	}
	return flag
}

func seatLabel(count int) string {
	if wire.SeatsUnlimited(count) {
		return "unlimited"
	}
	return fmt.Sprintf("%d", count)
}
