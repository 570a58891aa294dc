package db

import "github.com/jackc/pgx/v5/pgtype"

type Shop struct {
	ID   int64
	Name string
}

type Product struct {
	ID              int64
	ShopID          int64
	Name            string
	Price           pgtype.Numeric
	MaximumDiscount pgtype.Numeric
}

type ProductDiscount struct {
	ID             int64
	DiscountCode   string
	ProductID      int64
	Discount       pgtype.Numeric
	MinimumAmount  int32
	ExpirationDate pgtype.Date
}

type ShopDiscount struct {
	ID             int64
	DiscountCode   string
	ShopID         int64
	Discount       pgtype.Numeric
	MinimumAmount  int32
	ExpirationDate pgtype.Date
}
