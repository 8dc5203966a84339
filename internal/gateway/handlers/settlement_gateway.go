package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tillpoint/internal/settlement"
)

type SettlementHTTPHandler struct {
	engine *settlement.Engine
	store  settlement.Store
}

func NewSettlementHTTPHandler(engine *settlement.Engine, store settlement.Store) *SettlementHTTPHandler {
	return &SettlementHTTPHandler{
		engine: engine,
		store:  store,
	}
}

// Request structs
type PaymentSpecRequest struct {
	PosID         int64   `json:"pos_id"`
	UserID        int64   `json:"user_id"`
	OrderID       *int64  `json:"order_id,omitempty"`
	ChargeID      *int64  `json:"charge_id,omitempty"`
	Amount        string  `json:"amount" binding:"required"`
	CurrencyCode  string  `json:"currency_code" binding:"required"`
	Tender        string  `json:"tender" binding:"required"`
	ReferenceNo   *string `json:"reference_no,omitempty"`
	BankAccountID *int64  `json:"bank_account_id,omitempty"`
	CreditMemoID  *int64  `json:"credit_memo_id,omitempty"`
	IsRefund      bool    `json:"is_refund"`
	SupervisorPIN string  `json:"supervisor_pin,omitempty"`
}

type CreatePaymentRequest struct {
	PosID         int64   `json:"pos_id" binding:"required"`
	UserID        int64   `json:"user_id" binding:"required"`
	OrderID       *int64  `json:"order_id,omitempty"`
	ChargeID      *int64  `json:"charge_id,omitempty"`
	Amount        string  `json:"amount" binding:"required"`
	CurrencyCode  string  `json:"currency_code" binding:"required"`
	Tender        string  `json:"tender" binding:"required"`
	ReferenceNo   *string `json:"reference_no,omitempty"`
	BankAccountID *int64  `json:"bank_account_id,omitempty"`
	CreditMemoID  *int64  `json:"credit_memo_id,omitempty"`
	IsRefund      bool    `json:"is_refund"`
	SupervisorPIN string  `json:"supervisor_pin,omitempty"`
}

type ProcessOrderRequest struct {
	UserID       int64                `json:"user_id" binding:"required"`
	IsOpenRefund bool                 `json:"is_open_refund"`
	Payments     []PaymentSpecRequest `json:"payments,omitempty"`
}

type FlatDiscountRequest struct {
	UserID        int64   `json:"user_id" binding:"required"`
	RatePct       *string `json:"rate_pct,omitempty"`
	AmountOff     *string `json:"amount_off,omitempty"`
	SupervisorPIN string  `json:"supervisor_pin,omitempty"`
}

type CashPaymentSpecRequest struct {
	Amount       string  `json:"amount" binding:"required"`
	CurrencyCode string  `json:"currency_code" binding:"required"`
	Tender       string  `json:"tender" binding:"required"`
	ReferenceNo  *string `json:"reference_no,omitempty"`
}

type CashMovementRequest struct {
	PosID             int64                    `json:"pos_id" binding:"required"`
	CollectingAgentID int64                    `json:"collecting_agent_id" binding:"required"`
	Payments          []CashPaymentSpecRequest `json:"payments" binding:"required,min=1"`
}

type CashClosingRequest struct {
	StatementID int64  `json:"statement_id" binding:"required"`
	Description string `json:"description,omitempty"`
}

type ValidatePINRequest struct {
	UserID     int64   `json:"user_id" binding:"required"`
	Pin        string  `json:"pin" binding:"required"`
	Capability string  `json:"capability" binding:"required"`
	Amount     *string `json:"amount,omitempty"`
}

type AllocateSellerRequest struct {
	UserID       int64  `json:"user_id" binding:"required"`
	SupervisorID *int64 `json:"supervisor_id,omitempty"`
	IsSupervisor bool   `json:"is_supervisor"`
	Pin          string `json:"pin,omitempty"`

	CanApplyDiscount bool `json:"can_apply_discount"`
	CanRefund        bool `json:"can_refund"`
	CanWriteOff      bool `json:"can_write_off"`
	CanCloseCash     bool `json:"can_close_cash"`
	ConcurrentUse    bool `json:"concurrent_use"`

	MaxDiscountPct          string `json:"max_discount_pct,omitempty"`
	MaxRefundAmount         string `json:"max_refund_amount,omitempty"`
	MaxDailyRefundAmount    string `json:"max_daily_refund_amount,omitempty"`
	WriteOffToleranceAmount string `json:"write_off_tolerance_amount,omitempty"`
	WriteOffTolerancePct    string `json:"write_off_tolerance_pct,omitempty"`
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}

// statusFromError maps engine errors onto HTTP statuses: bad input 400,
// missing PIN 401, unknown entities 404, processor rejections 409,
// policy and conversion failures 422.
func statusFromError(err error) int {
	var ve *settlement.ValidationError
	var ue *settlement.UnauthorizedError
	var de *settlement.DocumentProcessingError
	var ce *settlement.ConversionNotFoundError

	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &ue):
		return http.StatusUnauthorized
	case errors.Is(err, settlement.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &de):
		return http.StatusConflict
	case errors.As(err, &ce), settlement.IsPolicyViolation(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFromError(err), errorResponse(err.Error()))
}

func parseAmount(raw string) (*decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseOptionalDecimal(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

func (r PaymentSpecRequest) toEngine() (settlement.CreatePaymentRequest, error) {
	amount, err := parseAmount(r.Amount)
	if err != nil {
		return settlement.CreatePaymentRequest{}, errors.New("invalid amount")
	}
	tender, err := settlement.ParseTenderType(r.Tender)
	if err != nil {
		return settlement.CreatePaymentRequest{}, err
	}
	return settlement.CreatePaymentRequest{
		PosID:         r.PosID,
		UserID:        r.UserID,
		OrderID:       r.OrderID,
		ChargeID:      r.ChargeID,
		Amount:        amount,
		CurrencyCode:  r.CurrencyCode,
		Tender:        tender,
		ReferenceNo:   r.ReferenceNo,
		BankAccountID: r.BankAccountID,
		CreditMemoID:  r.CreditMemoID,
		IsRefund:      r.IsRefund,
		SupervisorPIN: r.SupervisorPIN,
	}, nil
}

// --- Payment Handlers ---

func (h *SettlementHTTPHandler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	spec := PaymentSpecRequest{
		PosID:         req.PosID,
		UserID:        req.UserID,
		OrderID:       req.OrderID,
		ChargeID:      req.ChargeID,
		Amount:        req.Amount,
		CurrencyCode:  req.CurrencyCode,
		Tender:        req.Tender,
		ReferenceNo:   req.ReferenceNo,
		BankAccountID: req.BankAccountID,
		CreditMemoID:  req.CreditMemoID,
		IsRefund:      req.IsRefund,
		SupervisorPIN: req.SupervisorPIN,
	}
	engineReq, err := spec.toEngine()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	payment, err := h.engine.CreatePayment(c.Request.Context(), engineReq)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Payment created successfully", payment))
}

func (h *SettlementHTTPHandler) GetPayment(c *gin.Context) {
	paymentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid payment ID"))
		return
	}

	payment, err := h.store.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Payment retrieved successfully", payment))
}

// --- Order Handlers ---

func (h *SettlementHTTPHandler) ProcessOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid order ID"))
		return
	}

	var req ProcessOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	engineReq := settlement.ProcessOrderRequest{
		OrderID:      orderID,
		UserID:       req.UserID,
		IsOpenRefund: req.IsOpenRefund,
	}
	for _, spec := range req.Payments {
		pr, err := spec.toEngine()
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		engineReq.Payments = append(engineReq.Payments, pr)
	}

	order, err := h.engine.ProcessOrder(c.Request.Context(), engineReq)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Order processed successfully", order))
}

func (h *SettlementHTTPHandler) GetOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid order ID"))
		return
	}

	order, err := h.store.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	lines, err := h.store.ListOrderLines(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Order retrieved successfully", map[string]interface{}{
		"order": order,
		"lines": lines,
	}))
}

func (h *SettlementHTTPHandler) ApplyDiscount(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid order ID"))
		return
	}

	var req FlatDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	engineReq := settlement.FlatDiscountRequest{
		OrderID:       orderID,
		UserID:        req.UserID,
		SupervisorPIN: req.SupervisorPIN,
	}
	if req.RatePct != nil {
		rate, err := parseAmount(*req.RatePct)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid rate_pct"))
			return
		}
		engineReq.RatePct = rate
	}
	if req.AmountOff != nil {
		amount, err := parseAmount(*req.AmountOff)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid amount_off"))
			return
		}
		engineReq.AmountOff = amount
	}

	order, err := h.engine.ApplyFlatDiscount(c.Request.Context(), engineReq)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Discount applied successfully", order))
}

// --- Cash Session Handlers ---

func (r CashMovementRequest) toEngine() (settlement.CashMovementRequest, error) {
	out := settlement.CashMovementRequest{
		PosID:             r.PosID,
		CollectingAgentID: r.CollectingAgentID,
	}
	for _, spec := range r.Payments {
		amount, err := decimal.NewFromString(spec.Amount)
		if err != nil {
			return out, errors.New("invalid amount")
		}
		tender, err := settlement.ParseTenderType(spec.Tender)
		if err != nil {
			return out, err
		}
		out.Payments = append(out.Payments, settlement.CashPaymentSpec{
			Amount:       amount,
			CurrencyCode: spec.CurrencyCode,
			Tender:       tender,
			ReferenceNo:  spec.ReferenceNo,
		})
	}
	return out, nil
}

func (h *SettlementHTTPHandler) CashOpening(c *gin.Context) {
	h.cashMovement(c, h.engine.ProcessCashOpening, "Cash opening processed successfully")
}

func (h *SettlementHTTPHandler) CashWithdrawal(c *gin.Context) {
	h.cashMovement(c, h.engine.ProcessCashWithdrawal, "Cash withdrawal processed successfully")
}

func (h *SettlementHTTPHandler) cashMovement(c *gin.Context, process func(ctx context.Context, req settlement.CashMovementRequest) error, message string) {
	var req CashMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	engineReq, err := req.toEngine()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	if err := process(c.Request.Context(), engineReq); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(message, nil))
}

func (h *SettlementHTTPHandler) CashClosing(c *gin.Context) {
	var req CashClosingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	result, err := h.engine.ProcessCashClosing(c.Request.Context(), req.StatementID, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Cash session closed successfully", result))
}

func (h *SettlementHTTPHandler) GetCashSession(c *gin.Context) {
	statementID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid statement ID"))
		return
	}

	statement, err := h.store.GetStatement(c.Request.Context(), statementID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Cash session retrieved successfully", statement))
}

// --- Authorization Handlers ---

func (h *SettlementHTTPHandler) ValidatePIN(c *gin.Context) {
	posID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid POS ID"))
		return
	}

	var req ValidatePINRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	capability, err := settlement.ParseCapability(req.Capability)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	var amount *decimal.Decimal
	if req.Amount != nil {
		amount, err = parseAmount(*req.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid amount"))
			return
		}
	}

	if err := h.engine.ValidatePIN(c.Request.Context(), posID, req.UserID, req.Pin, capability, amount); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("PIN validated successfully", nil))
}

// --- Seller Handlers ---

func (h *SettlementHTTPHandler) AllocateSeller(c *gin.Context) {
	posID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid POS ID"))
		return
	}

	var req AllocateSellerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format"))
		return
	}

	engineReq := settlement.AllocateSellerRequest{
		PosID:            posID,
		UserID:           req.UserID,
		SupervisorID:     req.SupervisorID,
		IsSupervisor:     req.IsSupervisor,
		Pin:              req.Pin,
		CanApplyDiscount: req.CanApplyDiscount,
		CanRefund:        req.CanRefund,
		CanWriteOff:      req.CanWriteOff,
		CanCloseCash:     req.CanCloseCash,
		ConcurrentUse:    req.ConcurrentUse,
	}

	for _, field := range []struct {
		raw  string
		dest *decimal.Decimal
	}{
		{req.MaxDiscountPct, &engineReq.MaxDiscountPct},
		{req.MaxRefundAmount, &engineReq.MaxRefundAmount},
		{req.MaxDailyRefundAmount, &engineReq.MaxDailyRefundAmount},
		{req.WriteOffToleranceAmount, &engineReq.WriteOffToleranceAmount},
		{req.WriteOffTolerancePct, &engineReq.WriteOffTolerancePct},
	} {
		value, err := parseOptionalDecimal(field.raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid ceiling amount"))
			return
		}
		*field.dest = value
	}

	allocation, err := h.engine.AllocateSeller(c.Request.Context(), engineReq)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Seller allocated successfully", allocation))
}

func (h *SettlementHTTPHandler) DeallocateSeller(c *gin.Context) {
	posID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid POS ID"))
		return
	}

	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid user ID"))
		return
	}

	if err := h.engine.DeallocateSeller(c.Request.Context(), posID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Seller deallocated successfully", nil))
}
