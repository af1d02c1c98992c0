package models

import "time"

// Order statuses. An order is created Pending, becomes Completed once a
// payment row exists and stock has been decremented, and Cancelled only by
// the overdue-order sweep. There is no other transition.
const (
	OrderStatusPending   = "Pending"
	OrderStatusCompleted = "Completed"
	OrderStatusCancelled = "Cancelled"
)

const (
	PaymentMethodCash   = "Cash"
	PaymentMethodPayPal = "PayPal"

	PaymentStatusCompleted = "Completed"
)

// Order is the model for the 'orders' table.
type Order struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"userId" db:"user_id"`
	OrderDate   time.Time `json:"orderDate" db:"order_date"`
	Status      string    `json:"status" db:"status"`
	TotalAmount float64   `json:"totalAmount" db:"total_amount"`
}

// OrderDetail is the model for the 'order_details' table.
// UnitPrice is the product price snapshotted at checkout; it never changes
// afterwards, even if the product is repriced.
type OrderDetail struct {
	ID        int64   `json:"id" db:"id"`
	OrderID   int64   `json:"orderId" db:"order_id"`
	ProductID int64   `json:"productId" db:"product_id"`
	Quantity  int     `json:"quantity" db:"quantity"`
	UnitPrice float64 `json:"unitPrice" db:"unit_price"`
}

// Payment is the model for the 'payments' table. One row per order at most;
// a Pending order with no payment row is still awaiting payment.
type Payment struct {
	ID            int64     `json:"id" db:"id"`
	OrderID       int64     `json:"orderId" db:"order_id"`
	Amount        float64   `json:"amount" db:"amount"`
	PaymentMethod string    `json:"paymentMethod" db:"payment_method"`
	Status        string    `json:"status" db:"status"`
	TransactionID *string   `json:"transactionId,omitempty" db:"transaction_id"`
	PaymentDate   time.Time `json:"paymentDate" db:"payment_date"`
}
