package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/app"
	"github.com/noah-isme/toko-pricing/internal/auth"
	"github.com/noah-isme/toko-pricing/internal/config"
	"github.com/noah-isme/toko-pricing/internal/db"
	"github.com/noah-isme/toko-pricing/internal/lock"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/repo"
)

type seedProduct struct {
	Shop        string
	Name        string
	Price       string
	MaxDiscount string
}

type seedDiscount struct {
	Code      string
	Product   string // product name; empty for shop discounts
	Shop      string
	Percent   string
	MinAmount int32
	ValidDays int
}

var (
	shops    = []string{"Acme", "Globex", "Initech"}
	products = []seedProduct{
		{"Acme", "Widget", "10.00", "50"},
		{"Acme", "Gadget", "24.90", "30"},
		{"Globex", "Sprocket", "19.99", "15"},
		{"Globex", "Flange", "4.50", "100"},
		{"Initech", "Stapler", "12.75", "25"},
	}
	discounts = []seedDiscount{
		{Code: "SAVE20", Product: "Widget", Shop: "Acme", Percent: "20", MinAmount: 2, ValidDays: 30},
		{Code: "ACME10", Shop: "Acme", Percent: "10", MinAmount: 1, ValidDays: 30},
		{Code: "BIG90", Product: "Sprocket", Shop: "Globex", Percent: "90", MinAmount: 1, ValidDays: 365},
		{Code: "BULK5", Shop: "Globex", Percent: "5", MinAmount: 10, ValidDays: 90},
		{Code: "EXPIRED", Product: "Stapler", Shop: "Initech", Percent: "50", MinAmount: 1, ValidDays: -1},
	}
)

func main() {
	tokenSubject := flag.String("token-subject", "", "print a signed dev token for this subject after seeding")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the printed dev token")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, relying on environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "seeder: %v\n", err)
		os.Exit(2)
	}
	logger := obs.NewLogger("console", os.Getenv("OBS_LOG_LEVEL")).With().Str("component", "seeder").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := app.OpenPool(ctx, cfg, "toko-pricing-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()

	redisClient, err := app.OpenRedis(ctx, cfg, false, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open redis")
	}
	defer func() { _ = redisClient.Close() }()

	locker := lock.Locker{R: redisClient}
	err = locker.WithLock(ctx, "pricing:lock:seed", cfg.LockTTL, func(ctx context.Context) error {
		return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			return seed(ctx, db.New(pool).WithTx(tx), time.Now().In(cfg.PricingLocation), logger)
		})
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed fixtures")
	}
	logger.Info().Int("shops", len(shops)).Int("products", len(products)).Int("discounts", len(discounts)).Msg("seeding completed")

	if *tokenSubject != "" {
		verifier, err := auth.NewVerifier(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer, Audience: cfg.JWTAudience})
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise token issuer")
		}
		token, err := verifier.IssueToken(*tokenSubject, *tokenTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("issue dev token")
		}
		fmt.Println(token)
	}
}

func seed(ctx context.Context, q *db.Queries, today time.Time, logger zerolog.Logger) error {
	shopIDs := make(map[string]int64, len(shops))
	for _, name := range shops {
		s, err := q.UpsertShop(ctx, name)
		if err != nil {
			return fmt.Errorf("upsert shop %s: %w", name, err)
		}
		shopIDs[name] = s.ID
	}

	productIDs := make(map[string]int64, len(products))
	for _, p := range products {
		price, err := numeric(p.Price)
		if err != nil {
			return err
		}
		maxDiscount, err := numeric(p.MaxDiscount)
		if err != nil {
			return err
		}
		row, err := q.CreateProduct(ctx, db.CreateProductParams{
			ShopID:          shopIDs[p.Shop],
			Name:            p.Name,
			Price:           price,
			MaximumDiscount: maxDiscount,
		})
		if err != nil {
			return fmt.Errorf("create product %s: %w", p.Name, err)
		}
		productIDs[p.Name] = row.ID
		logger.Debug().Str("product", p.Name).Int64("id", row.ID).Msg("seeded product")
	}

	for _, d := range discounts {
		pct, err := numeric(d.Percent)
		if err != nil {
			return err
		}
		expires := pgtype.Date{Time: today.AddDate(0, 0, d.ValidDays), Valid: true}
		if d.Product != "" {
			err = q.CreateProductDiscount(ctx, db.CreateProductDiscountParams{
				DiscountCode:   d.Code,
				ProductID:      productIDs[d.Product],
				Discount:       pct,
				MinimumAmount:  d.MinAmount,
				ExpirationDate: expires,
			})
		} else {
			err = q.CreateShopDiscount(ctx, db.CreateShopDiscountParams{
				DiscountCode:   d.Code,
				ShopID:         shopIDs[d.Shop],
				Discount:       pct,
				MinimumAmount:  d.MinAmount,
				ExpirationDate: expires,
			})
		}
		if err != nil {
			return fmt.Errorf("create discount %s: %w", d.Code, err)
		}
	}
	return nil
}

func numeric(v string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return pgtype.Numeric{}, fmt.Errorf("parse %q: %w", v, err)
	}
	return repo.FromDecimal(d)
}
