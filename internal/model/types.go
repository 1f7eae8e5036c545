package model

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusClosed
}

// Order is a service order as stored by the authoritative store. Only Status
// changes after creation, and only from open to closed.
type Order struct {
	ID          string `json:"id"`
	Client      string `json:"client"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      Status `json:"status"`
	CreatedAt   int64  `json:"createdAt"`
	ClosedAt    int64  `json:"closedAt,omitempty"`
}

type Account struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	CreatedAt    int64  `json:"createdAt"`
}

// Filter selects records of a collection by a single field comparison.
type Filter struct {
	Field string
	Op    string
	Value string
}

const (
	CollectionOrders = "orders"
	FieldStatus      = "status"
	OpEqual          = "=="
)

func StatusFilter(status Status) Filter {
	return Filter{Field: FieldStatus, Op: OpEqual, Value: string(status)}
}
