package model

type CartItem struct {
	BookID   int `json:"bookID"`
	Quantity int `json:"quantity"`
}
