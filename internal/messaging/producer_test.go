package messaging

import "testing"

type placed struct {
	OrderID string `json:"order_id"`
}

func (placed) RoutingKey() string { return "order.placed" }

func TestEncode(t *testing.T) {
	msg, err := encode("order-1", placed{OrderID: "order-1"})
	if err != nil {
		t.Fatal(err)
	}

	if string(msg.Key) != "order-1" {
		t.Errorf("key = %q", msg.Key)
	}
	if string(msg.Value) != `{"order_id":"order-1"}` {
		t.Errorf("value = %s", msg.Value)
	}
	if got := NewMessageCarrier(&msg).Get(eventTypeHeader); got != "order.placed" {
		t.Errorf("event-type header = %q", got)
	}

	plain, err := encode("k", map[string]int{"n": 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(plain.Headers) != 0 {
		t.Errorf("unexpected headers %v", plain.Headers)
	}
}
