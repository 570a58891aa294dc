package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeDB struct {
	sql  string
	args []any
	row  fakeRow
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.sql, f.args = sql, args
	return f.row
}

func TestGetShopByNameScans(t *testing.T) {
	fake := &fakeDB{row: fakeRow{scan: func(dest ...any) error {
		*dest[0].(*int64) = 7
		*dest[1].(*string) = "Acme"
		return nil
	}}}
	shop, err := New(fake).GetShopByName(context.Background(), "Acme")
	require.NoError(t, err)
	require.Equal(t, Shop{ID: 7, Name: "Acme"}, shop)
	require.Equal(t, []any{"Acme"}, fake.args)
	require.Contains(t, fake.sql, "FROM shops")
}

func TestGetProductDiscountByCodeFiltersByDate(t *testing.T) {
	fake := &fakeDB{row: fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}}
	asOf := pgtype.Date{Time: time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), Valid: true}
	_, err := New(fake).GetProductDiscountByCode(context.Background(), GetDiscountByCodeParams{DiscountCode: "SAVE20", AsOf: asOf})
	require.ErrorIs(t, err, pgx.ErrNoRows)
	require.True(t, strings.Contains(fake.sql, "expiration_date >= $2"))
	require.Equal(t, []any{"SAVE20", asOf}, fake.args)
}

func TestCreateShopDiscountExec(t *testing.T) {
	fake := &fakeDB{}
	var pct pgtype.Numeric
	require.NoError(t, pct.Scan("15"))
	err := New(fake).CreateShopDiscount(context.Background(), CreateShopDiscountParams{
		DiscountCode:   "SHOP15",
		ShopID:         7,
		Discount:       pct,
		MinimumAmount:  1,
		ExpirationDate: pgtype.Date{Time: time.Now(), Valid: true},
	})
	require.NoError(t, err)
	require.Contains(t, fake.sql, "INSERT INTO discounts_shops")
	require.Len(t, fake.args, 5)
}
