package types

import (
	"errors"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	MaxCheckoutItems    = 100
	MaxSessionIDLength  = 255
	DefaultHistoryLimit = int32(50)
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func NewCreateCheckoutRequestFromContext(ctx echo.Context) (*CreateCheckoutRequest, error) {
	var body CreateCheckoutRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Normalize()

	return &body, nil
}

func (r *CreateCheckoutRequest) Normalize() {
	r.OriginUrl = strings.TrimRight(strings.TrimSpace(r.OriginUrl), "/")
	for _, item := range r.Items {
		if item != nil {
			item.ProductId = strings.TrimSpace(item.ProductId)
		}
	}
}

func (r *CreateCheckoutRequest) Validate() error {
	if len(r.GetItems()) == 0 {
		return errors.New("items are required")
	}
	if len(r.GetItems()) > MaxCheckoutItems {
		return errors.New("too many items")
	}
	for _, item := range r.GetItems() {
		if item.GetProductId() == "" {
			return errors.New("product_id is required")
		}
		if item.GetQuantity() <= 0 {
			return errors.New("quantity must be > 0")
		}
	}

	origin, err := url.Parse(r.GetOriginUrl())
	if err != nil || (origin.Scheme != "http" && origin.Scheme != "https") || origin.Host == "" {
		return errors.New("origin_url must be an absolute http(s) url")
	}

	return nil
}

func NewGetCheckoutStatusRequestFromContext(ctx echo.Context) (*GetCheckoutStatusRequest, error) {
	return &GetCheckoutStatusRequest{SessionId: strings.TrimSpace(ctx.Param("session_id"))}, nil
}

func (r *GetCheckoutStatusRequest) Validate() error {
	sessionID := r.GetSessionId()
	if sessionID == "" {
		return errors.New("session_id is required")
	}
	if len(sessionID) > MaxSessionIDLength || !sessionIDPattern.MatchString(sessionID) {
		return errors.New("invalid session_id")
	}
	return nil
}

func NewListTransactionsRequestFromContext(ctx echo.Context) (*ListTransactionsRequest, error) {
	req := &ListTransactionsRequest{Limit: DefaultHistoryLimit}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	return req, nil
}

func (r *ListTransactionsRequest) Validate() error {
	if r.Limit == 0 {
		r.Limit = DefaultHistoryLimit
	}
	if r.GetLimit() < 0 || r.GetLimit() > DefaultHistoryLimit {
		return errors.New("limit must be between 1 and 50")
	}
	return nil
}
