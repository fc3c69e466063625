package services

// HealthResponse is returned by every service's /health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// RegisterRequest creates a user in the auth service.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// RegisterResponse confirms a registration.
type RegisterResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

// Product categories accepted by the catalog service.
const (
	CategoryElectronics = "electronics"
	CategoryBooks       = "books"
	CategoryClothing    = "clothing"
	CategoryFood        = "food"
	CategoryOther       = "other"
)

// Product is a catalog item.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Stock       int     `json:"stock"`
	ImageURL    string  `json:"image_url,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

// ProductPage is one page of the catalog listing.
type ProductPage struct {
	Items      []Product `json:"items"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int       `json:"total_pages"`
}

// CreateProductRequest creates a catalog item.
type CreateProductRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Stock       int     `json:"stock"`
}

// OrderItem is a line of an order. Product details beyond the name are not
// embedded and must be looked up in the catalog.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Name      string  `json:"name"`
}

// ShippingAddress is the delivery address of an order.
type ShippingAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	Country string `json:"country"`
	Zip     string `json:"zip,omitempty"`
}

// CreateOrderRequest places an order.
type CreateOrderRequest struct {
	UserID          string          `json:"user_id"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
}

// Order is an order as returned by the order service.
type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Items           []OrderItem     `json:"items"`
	TotalAmount     float64         `json:"total_amount"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"payment_status"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       string          `json:"created_at,omitempty"`
	UpdatedAt       string          `json:"updated_at,omitempty"`
}

// UserOrders lists the orders of one user.
type UserOrders struct {
	Orders []Order `json:"orders"`
	Total  int     `json:"total"`
	UserID string  `json:"user_id"`
}

// GraphQLRequest is a GraphQL POST body.
type GraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// GraphQLError is a single entry of a GraphQL errors array.
type GraphQLError struct {
	Message string `json:"message"`
}

// GraphQLProduct is the product selection of the aggregated query.
type GraphQLProduct struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Stock       int     `json:"stock"`
	ImageURL    string  `json:"imageUrl"`
}

// GraphQLOrderItem is an order line with its product resolved server side.
type GraphQLOrderItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     float64         `json:"price"`
	Name      string          `json:"name"`
	Product   *GraphQLProduct `json:"product"`
}

// GraphQLOrder is an order returned by the userOrders query.
type GraphQLOrder struct {
	ID            string             `json:"id"`
	TotalAmount   float64            `json:"totalAmount"`
	Status        string             `json:"status"`
	PaymentStatus string             `json:"paymentStatus"`
	Address       string             `json:"address"`
	Items         []GraphQLOrderItem `json:"items"`
}

type userOrdersData struct {
	UserOrders []GraphQLOrder `json:"userOrders"`
}

type userOrdersResponse struct {
	Data   *userOrdersData `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// UserOrdersQuery fetches every order of a user with full product details
// in a single round trip.
const UserOrdersQuery = `query UserOrders($userId: String!) {
  userOrders(userId: $userId) {
    id
    totalAmount
    status
    paymentStatus
    address
    items {
      productId
      quantity
      price
      name
      product {
        id
        name
        description
        price
        category
        stock
        imageUrl
      }
    }
  }
}`
