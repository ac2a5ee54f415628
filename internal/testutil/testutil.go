// Package testutil provides database fixtures shared by the package tests.
package testutil

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"cargo-backend/internal/database"
	"cargo-backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated in-memory SQLite database. The pool is capped at
// one connection because every sqlite :memory: connection is its own database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, database.Migrate(db))
	return db
}

// MockDB wraps a GORM handle backed by sqlmock with the postgres dialect.
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = mockDB.Close() })
	return &MockDB{DB: gormDB, Mock: mock, SqlDB: mockDB}
}

func CreateClient(t *testing.T, db *gorm.DB, name string) models.Client {
	t.Helper()
	c := models.Client{Name: name}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func CreateProduct(t *testing.T, db *gorm.DB, sku string, weight *decimal.Decimal) models.Product {
	t.Helper()
	p := models.Product{SKU: sku, Name: "Producto " + sku, Weight: weight}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func CreateSupplier(t *testing.T, db *gorm.DB, name string) models.Supplier {
	t.Helper()
	s := models.Supplier{Name: name}
	require.NoError(t, db.Create(&s).Error)
	return s
}

// CreateShipment inserts a shipment row directly, bypassing numbering.
func CreateShipment(t *testing.T, db *gorm.DB, number uint, status string, shipped, arrived *time.Time) models.Shipment {
	t.Helper()
	s := models.Shipment{
		ShipmentNumber: number,
		Forwarder:      "FW",
		Status:         status,
		DateShipped:    shipped,
		DateArrived:    arrived,
	}
	require.NoError(t, db.Create(&s).Error)
	return s
}

// ItemSpec describes one line of an order inserted with CreateOrder.
type ItemSpec struct {
	Quantity   int
	Price      string
	Cost       string
	ProductID  *uint
	ShipmentID *uint
}

// CreateOrder inserts an order with items directly, without a ledger entry.
func CreateOrder(t *testing.T, db *gorm.DB, number uint, clientID uint, shipmentID *uint, items ...ItemSpec) models.Order {
	t.Helper()

	order := models.Order{
		OrderNumber: number,
		ClientID:    clientID,
		ShipmentID:  shipmentID,
		Date:        time.Now(),
		Status:      models.OrderStatusPending,
	}
	total := decimal.Zero
	for _, it := range items {
		price := decimal.RequireFromString(it.Price)
		cost := decimal.RequireFromString(it.Cost)
		qty := decimal.NewFromInt(int64(it.Quantity))
		subtotal := price.Mul(qty)
		total = total.Add(subtotal)
		order.Items = append(order.Items, models.OrderItem{
			ProductID:   it.ProductID,
			ShipmentID:  it.ShipmentID,
			ProductName: fmt.Sprintf("item-%d", len(order.Items)+1),
			Quantity:    it.Quantity,
			UnitPrice:   price,
			UnitCost:    cost,
			Subtotal:    subtotal,
			Profit:      price.Sub(cost).Mul(qty),
			Status:      models.OrderStatusPending,
		})
	}
	order.TotalAmount = total
	require.NoError(t, db.Create(&order).Error)
	return order
}

func Ptr[T any](v T) *T { return &v }
