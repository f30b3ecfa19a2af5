package types

// Wire messages shared by the HTTP and gRPC surfaces. Getters follow the
// protobuf convention and are nil-safe.

type CheckoutItem struct {
	ProductId string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

func (x *CheckoutItem) GetProductId() string {
	if x == nil {
		return ""
	}
	return x.ProductId
}

func (x *CheckoutItem) GetQuantity() int32 {
	if x == nil {
		return 0
	}
	return x.Quantity
}

type CreateCheckoutRequest struct {
	Items     []*CheckoutItem `json:"items"`
	OriginUrl string          `json:"origin_url"`
}

func (x *CreateCheckoutRequest) GetItems() []*CheckoutItem {
	if x == nil {
		return nil
	}
	return x.Items
}

func (x *CreateCheckoutRequest) GetOriginUrl() string {
	if x == nil {
		return ""
	}
	return x.OriginUrl
}

type CreateCheckoutResponse struct {
	Url           string  `json:"url"`
	SessionId     string  `json:"session_id"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	TransactionId string  `json:"transaction_id"`
}

type GetCheckoutStatusRequest struct {
	SessionId string `json:"session_id"`
}

func (x *GetCheckoutStatusRequest) GetSessionId() string {
	if x == nil {
		return ""
	}
	return x.SessionId
}

type CheckoutStatusResponse struct {
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	AmountTotal   float64 `json:"amount_total"`
	Currency      string  `json:"currency"`
	TransactionId string  `json:"transaction_id"`
	Message       string  `json:"message"`
}

type ListTransactionsRequest struct {
	Limit int32 `json:"limit"`
}

func (x *ListTransactionsRequest) GetLimit() int32 {
	if x == nil {
		return 0
	}
	return x.Limit
}

type LineItem struct {
	ProductId string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int32   `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

type Transaction struct {
	Id            string      `json:"id"`
	SessionId     string      `json:"session_id"`
	Amount        float64     `json:"amount"`
	Currency      string      `json:"currency"`
	Status        string      `json:"status"`
	PaymentStatus string      `json:"payment_status"`
	ItemCount     int32       `json:"item_count"`
	LineItems     []*LineItem `json:"line_items"`
	CreatedAt     string      `json:"created_at"`
	UpdatedAt     string      `json:"updated_at"`
}

type ListTransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
}

type TransactionEvent struct {
	EventType        string `json:"event_type"`
	OldStatus        string `json:"old_status,omitempty"`
	OldPaymentStatus string `json:"old_payment_status,omitempty"`
	NewStatus        string `json:"new_status"`
	NewPaymentStatus string `json:"new_payment_status"`
	Detail           string `json:"detail,omitempty"`
	CreatedAt        string `json:"created_at"`
}

type ListTransactionEventsResponse struct {
	SessionId string              `json:"session_id"`
	Events    []*TransactionEvent `json:"events"`
}

type HealthRequest struct{}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
