package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/carpool-driver/internal/models"
)

const mobileMoney = "mobile_money"

func (c *Client) CreatePayment(ctx context.Context, p models.PaymentRequest) (*models.Payment, error) {
	p.Phone = strings.TrimSpace(p.Phone)
	if p.PaymentMethod == "" {
		p.PaymentMethod = mobileMoney
	}
	if err := check(p); err != nil {
		return nil, err
	}
	payload, err := c.do(ctx, call{name: "/payments", method: http.MethodPost, path: "/payments", body: p})
	if err != nil {
		return nil, err
	}
	return decodeOptional[models.Payment]("/payments", payload)
}

// ConfirmPayment marks a passenger's payment as received. The request has no
// body.
func (c *Client) ConfirmPayment(ctx context.Context, paymentID int64) (*models.Payment, error) {
	path := "/payments/" + strconv.FormatInt(paymentID, 10) + "/confirm"
	payload, err := c.do(ctx, call{name: "/payments/{id}/confirm", method: http.MethodPost, path: path})
	if err != nil {
		return nil, err
	}
	return decodeOptional[models.Payment]("/payments/{id}/confirm", payload)
}
