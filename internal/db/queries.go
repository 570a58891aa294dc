package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const getShopByName = `SELECT id, name FROM shops WHERE name = $1`

func (q *Queries) GetShopByName(ctx context.Context, name string) (Shop, error) {
	var s Shop
	err := q.db.QueryRow(ctx, getShopByName, name).Scan(&s.ID, &s.Name)
	return s, err
}

const getProductByID = `SELECT id, shop_id, name, price, maximum_discount FROM products WHERE id = $1`

func (q *Queries) GetProductByID(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := q.db.QueryRow(ctx, getProductByID, id).Scan(&p.ID, &p.ShopID, &p.Name, &p.Price, &p.MaximumDiscount)
	return p, err
}

const getProductDiscountByCode = `SELECT id, discount_code, product_id, discount, minimum_amount, expiration_date
FROM discounts_products
WHERE discount_code = $1 AND expiration_date >= $2
ORDER BY id
LIMIT 1`

type GetDiscountByCodeParams struct {
	DiscountCode string
	AsOf         pgtype.Date
}

func (q *Queries) GetProductDiscountByCode(ctx context.Context, arg GetDiscountByCodeParams) (ProductDiscount, error) {
	var d ProductDiscount
	err := q.db.QueryRow(ctx, getProductDiscountByCode, arg.DiscountCode, arg.AsOf).Scan(
		&d.ID, &d.DiscountCode, &d.ProductID, &d.Discount, &d.MinimumAmount, &d.ExpirationDate,
	)
	return d, err
}

const getShopDiscountByCode = `SELECT id, discount_code, shop_id, discount, minimum_amount, expiration_date
FROM discounts_shops
WHERE discount_code = $1 AND expiration_date >= $2
ORDER BY id
LIMIT 1`

func (q *Queries) GetShopDiscountByCode(ctx context.Context, arg GetDiscountByCodeParams) (ShopDiscount, error) {
	var d ShopDiscount
	err := q.db.QueryRow(ctx, getShopDiscountByCode, arg.DiscountCode, arg.AsOf).Scan(
		&d.ID, &d.DiscountCode, &d.ShopID, &d.Discount, &d.MinimumAmount, &d.ExpirationDate,
	)
	return d, err
}

const upsertShop = `INSERT INTO shops (name) VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, name`

func (q *Queries) UpsertShop(ctx context.Context, name string) (Shop, error) {
	var s Shop
	err := q.db.QueryRow(ctx, upsertShop, name).Scan(&s.ID, &s.Name)
	return s, err
}

const createProduct = `INSERT INTO products (shop_id, name, price, maximum_discount)
VALUES ($1, $2, $3, $4)
ON CONFLICT (shop_id, name) DO UPDATE SET price = EXCLUDED.price, maximum_discount = EXCLUDED.maximum_discount
RETURNING id, shop_id, name, price, maximum_discount`

type CreateProductParams struct {
	ShopID          int64
	Name            string
	Price           pgtype.Numeric
	MaximumDiscount pgtype.Numeric
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	var p Product
	err := q.db.QueryRow(ctx, createProduct, arg.ShopID, arg.Name, arg.Price, arg.MaximumDiscount).Scan(
		&p.ID, &p.ShopID, &p.Name, &p.Price, &p.MaximumDiscount,
	)
	return p, err
}

const createProductDiscount = `INSERT INTO discounts_products (discount_code, product_id, discount, minimum_amount, expiration_date)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (discount_code) DO NOTHING`

type CreateProductDiscountParams struct {
	DiscountCode   string
	ProductID      int64
	Discount       pgtype.Numeric
	MinimumAmount  int32
	ExpirationDate pgtype.Date
}

func (q *Queries) CreateProductDiscount(ctx context.Context, arg CreateProductDiscountParams) error {
	_, err := q.db.Exec(ctx, createProductDiscount, arg.DiscountCode, arg.ProductID, arg.Discount, arg.MinimumAmount, arg.ExpirationDate)
	return err
}

const createShopDiscount = `INSERT INTO discounts_shops (discount_code, shop_id, discount, minimum_amount, expiration_date)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (discount_code) DO NOTHING`

type CreateShopDiscountParams struct {
	DiscountCode   string
	ShopID         int64
	Discount       pgtype.Numeric
	MinimumAmount  int32
	ExpirationDate pgtype.Date
}

func (q *Queries) CreateShopDiscount(ctx context.Context, arg CreateShopDiscountParams) error {
	_, err := q.db.Exec(ctx, createShopDiscount, arg.DiscountCode, arg.ShopID, arg.Discount, arg.MinimumAmount, arg.ExpirationDate)
	return err
}
