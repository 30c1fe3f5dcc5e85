package nailit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, "secret-token", 0, logging.Default())
}

func TestClient_RegisterUser_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/NailItMobile/api/Register", r.URL.Path)
		require.Equal(t, "secret-token", r.Header.Get(tokenHeader))

		var req RegisterRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Sarah Ahmed", req.Name)
		assert.Equal(t, 1, req.LoginType)

		_, _ = w.Write([]byte(`{"Status":0,"Message":"Success","App_User_Id":42,"Customer_Id":7}`))
	})

	resp, err := client.RegisterUser(context.Background(), RegisterRequest{Name: "Sarah Ahmed", Email: "sarah@example.com", Mobile: "96550001234"})
	require.NoError(t, err)
	assert.Equal(t, 42, resp.AppUserID)
}

func TestClient_RegisterUser_PhoneRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Status":1,"Message":"Invalid Mobile Number"}`))
	})

	_, err := client.RegisterUser(context.Background(), RegisterRequest{Name: "Sarah", Mobile: "+965 5000"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPhone))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 1, apiErr.Status)
}

func TestClient_RegisterUser_OtherRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Status":2,"Message":"Email already linked"}`))
	})

	_, err := client.RegisterUser(context.Background(), RegisterRequest{Name: "Sarah"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalidPhone))
}

func TestClient_SaveOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/NailItMobile/api/SaveOrder", r.URL.Path)
		var req OrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Items, 1)
		assert.Equal(t, 203, req.Items[0].ProductID)
		assert.Equal(t, []int{13, 14}, req.Items[0].TimeFrameIDs)
		_, _ = w.Write([]byte(`{"Status":0,"Message":"Order Saved","OrderID":176201}`))
	})

	resp, err := client.SaveOrder(context.Background(), OrderRequest{
		AppUserID: 42,
		Items:     []OrderItem{{ProductID: 203, Quantity: 1, Rate: 15, Amount: 15, TimeFrameIDs: []int{13, 14}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 176201, resp.OrderID)
}

func TestClient_SaveOrder_Rejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Status":1,"Message":"Staff not available","OrderID":0}`))
	})

	_, err := client.SaveOrder(context.Background(), OrderRequest{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "Staff not available", apiErr.Message)
}

func TestClient_GetAvailableServiceStaff(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/NailItMobile/api/GetServiceStaff1/203/1/E/18-10-2026", r.URL.Path)
		_, _ = w.Write([]byte(`{"Status":0,"Specialists":[{"Id":9,"Name":"Maria","Time_Frames":[{"From_TimeFrame_Id":13,"To_TimeFrame_Id":14,"From_Time":"3:00 PM","To_Time":"4:00 PM"}]}]}`))
	})

	staff, err := client.GetAvailableServiceStaff(context.Background(), 203, 1, "18-10-2026")
	require.NoError(t, err)
	require.Len(t, staff, 1)
	assert.Equal(t, "Maria", staff[0].Name)
	assert.Equal(t, "3:00 PM", staff[0].TimeFrames[0].FromTime)
}

func TestClient_GetOrderPaymentDetail(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/NailItMobile/api/GetOrderPaymentDetail/176201":
			_, _ = w.Write([]byte(`{"Status":0,"OrderId":176201,"KNetResult":"CAPTURED","PayNowTotal":15,"Location_Name":"Al-Plaza Mall","Services":[{"Service_Name":"French Manicure","Staff_Name":"Maria","Appointment_Date":"18-10-2026","Time_Frame":"3:00 PM - 4:00 PM"}]}`))
		default:
			http.NotFound(w, r)
		}
	})

	detail, err := client.GetOrderPaymentDetail(context.Background(), 176201)
	require.NoError(t, err)
	assert.True(t, detail.IsPaid())
	assert.Equal(t, "Maria", detail.Services[0].StaffName)

	_, err = client.GetOrderPaymentDetail(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestClient_GetLocationsAndPaymentTypes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/NailItMobile/api/GetLocations/E":
			_, _ = w.Write([]byte(`{"Status":0,"Locations":[{"Location_Id":1,"Location_Name":"Al-Plaza Mall","From_Time":"11:00 AM","To_Time":"10:00 PM"}]}`))
		case "/NailItMobile/api/GetPaymentTypesByDevice/E/2":
			_, _ = w.Write([]byte(`{"Status":0,"PaymentTypes":[{"Type_Id":1,"Type_Name":"Cash","Type_Code":"COD","Is_Enabled":true}]}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	locations, err := client.GetLocations(context.Background())
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, "11:00 AM", locations[0].FromTime)

	types, err := client.GetPaymentTypes(context.Background())
	require.NoError(t, err)
	require.Len(t, types, 1)
	assert.Equal(t, "COD", types[0].Code)
}

func TestClient_GetItemsByLocation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 2, body["Page_No"])
		_, _ = w.Write([]byte(`{"Status":0,"Total_Items":101,"Items":[{"Item_Id":203,"Item_Name":"French Manicure","Primary_Price":15,"Special_Price":12,"Duration":45,"Location_Ids":[1,2]}]}`))
	})

	items, total, err := client.GetItemsByLocation(context.Background(), 1, 2, 100)
	require.NoError(t, err)
	assert.Equal(t, 101, total)
	require.Len(t, items, 1)
	assert.Equal(t, 12.0, items[0].EffectivePrice())
}

func TestClient_GetOrderHistory(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "50001234", r.URL.Query().Get("mobile"))
		_, _ = w.Write([]byte(`{"Status":0,"Orders":[{"Order_Id":176201,"Order_Status":"Pending"}]}`))
	})

	orders, err := client.GetOrderHistory(context.Background(), "50001234")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 176201, orders[0].OrderID)
}

func TestClient_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream failed", http.StatusBadGateway)
	})

	_, err := client.GetLocations(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+965 5000 1234", "50001234"},
		{"0096550001234", "50001234"},
		{"96550001234", "50001234"},
		{"50001234", "50001234"},
		{"+44 7700 900123", "447700900123"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in), tt.in)
	}
}
