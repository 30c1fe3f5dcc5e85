// Package nailit contains the NailIt POS REST client and wire types.
package nailit

import (
	"fmt"
	"strings"
)

// DateLayout is the day-month-year form NailIt expects for appointment dates.
const DateLayout = "02-01-2006"

// Envelope is the status header NailIt attaches to every response.
// Status 0 means success.
type Envelope struct {
	Status  int    `json:"Status"`
	Message string `json:"Message"`
}

// APIError is returned when NailIt answers 2xx with a non-zero status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nailit status %d: %s", e.Status, e.Message)
}

// Location is a salon branch.
type Location struct {
	LocationID int    `json:"Location_Id"`
	Name       string `json:"Location_Name"`
	Address    string `json:"Address"`
	FromTime   string `json:"From_Time"` // e.g. "11:00 AM"
	ToTime     string `json:"To_Time"`   // e.g. "10:00 PM"
	Website    string `json:"Website,omitempty"`
}

// PaymentType is a payment method accepted at order time.
type PaymentType struct {
	TypeID  int    `json:"Type_Id"`
	Name    string `json:"Type_Name"`
	Code    string `json:"Type_Code"`
	Enabled bool   `json:"Is_Enabled"`
}

// Item is a bookable service as listed by the POS.
type Item struct {
	ItemID          int      `json:"Item_Id"`
	Name            string   `json:"Item_Name"`
	Description     string   `json:"Item_Desc"`
	Price           float64  `json:"Primary_Price"`
	SpecialPrice    float64  `json:"Special_Price"`
	DurationMinutes int      `json:"Duration"`
	LocationIDs     []int    `json:"Location_Ids"`
	Groups          []string `json:"Parent_Groups"`
}

// EffectivePrice returns the special price when one is set.
func (i Item) EffectivePrice() float64 {
	if i.SpecialPrice > 0 {
		return i.SpecialPrice
	}
	return i.Price
}

// RegisterRequest registers (or fetches) a customer as a POS app user.
type RegisterRequest struct {
	Name      string `json:"Full_Name"`
	Email     string `json:"Email_Id"`
	Mobile    string `json:"Mobile"`
	Address   string `json:"Address"`
	LoginType int    `json:"Login_Type"`
}

// RegisterResponse identifies the POS user.
type RegisterResponse struct {
	Envelope
	AppUserID  int `json:"App_User_Id"`
	CustomerID int `json:"Customer_Id"`
}

// OrderRequest is the SaveOrder payload.
type OrderRequest struct {
	AppUserID     int         `json:"App_User_Id"`
	AppUserName   string      `json:"App_User_Name"`
	AppUserEmail  string      `json:"App_User_Email"`
	AppUserMobile string      `json:"App_User_Mobile"`
	LocationID    int         `json:"Location_Id"`
	PaymentTypeID int         `json:"Payment_Type_Id"`
	OrderType     int         `json:"Order_Type"`
	GrossAmount   float64     `json:"Gross_Amount"`
	PayNowAmount  float64     `json:"Pay_Now_Amount"`
	Items         []OrderItem `json:"Order_Details"`
}

// OrderItem is one service line on an order.
type OrderItem struct {
	ProductID       int     `json:"Prod_Id"`
	ProductName     string  `json:"Prod_Name"`
	Quantity        int     `json:"Qty"`
	Rate            float64 `json:"Rate"`
	Amount          float64 `json:"Amount"`
	StaffID         int     `json:"Staff_Id"`
	TimeFrameIDs    []int   `json:"TimeFrame_Ids"`
	AppointmentDate string  `json:"Appointment_Date"`
}

// OrderResponse carries the created order id.
type OrderResponse struct {
	Envelope
	OrderID int `json:"OrderID"`
}

// TimeFrame is a POS time slot window.
type TimeFrame struct {
	FromSlotID int    `json:"From_TimeFrame_Id"`
	ToSlotID   int    `json:"To_TimeFrame_Id"`
	FromTime   string `json:"From_Time"`
	ToTime     string `json:"To_Time"`
}

// StaffAvailability lists the time frames a staff member can take.
type StaffAvailability struct {
	StaffID    int         `json:"Id"`
	Name       string      `json:"Name"`
	TimeFrames []TimeFrame `json:"Time_Frames"`
}

// PaymentService summarises one booked service on a payment detail.
type PaymentService struct {
	Name            string `json:"Service_Name"`
	StaffName       string `json:"Staff_Name"`
	AppointmentDate string `json:"Appointment_Date"`
	TimeFrame       string `json:"Time_Frame"`
}

// PaymentDetail is the result of GetOrderPaymentDetail.
type PaymentDetail struct {
	Envelope
	OrderID       int              `json:"OrderId"`
	CustomerName  string           `json:"Customer_Name"`
	LocationName  string           `json:"Location_Name"`
	PayType       string           `json:"PayType"`
	PaymentStatus string           `json:"KNetResult"`
	OrderStatus   string           `json:"Order_Status"`
	PaidAmount    float64          `json:"PayNowTotal"`
	Services      []PaymentService `json:"Services"`
}

// IsPaid reports whether the payment was captured.
func (p PaymentDetail) IsPaid() bool {
	switch strings.ToUpper(strings.TrimSpace(p.PaymentStatus)) {
	case "CAPTURED", "PAID", "SUCCESS":
		return true
	}
	return strings.EqualFold(strings.TrimSpace(p.OrderStatus), "paid")
}

// CustomerOrder is an entry from a customer's order history.
type CustomerOrder struct {
	OrderID         int    `json:"Order_Id"`
	Status          string `json:"Order_Status"`
	LocationName    string `json:"Location_Name"`
	AppointmentDate string `json:"Appointment_Date"`
	CreatedAt       string `json:"Created_At"`
}
