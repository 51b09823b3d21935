package api

import (
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	"github.com/openclear/settled/internal/exchange"
)

// orderPayload is the wire form of an order; integer fields travel as decimal
// strings so they survive JSON number precision limits
type orderPayload struct {
	Nonce      uint64 `json:"nonce"`
	Sender     string `json:"sender" validate:"required"`
	Direction  string `json:"direction" validate:"required,oneof=BUY SELL"`
	Price      string `json:"price" validate:"required"`
	Amount     string `json:"amount" validate:"required"`
	Expired    uint64 `json:"expired"`
	BaseToken  string `json:"base_token" validate:"required"`
	QuoteToken string `json:"quote_token" validate:"required"`
}

func (p *orderPayload) toOrder() (*exchange.Order, error) {
	for name, addr := range map[string]string{"sender": p.Sender, "base_token": p.BaseToken, "quote_token": p.QuoteToken} {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("%s is not a valid address", name)
		}
	}
	price, ok := new(big.Int).SetString(p.Price, 10)
	if !ok || price.Sign() < 0 || price.BitLen() > 256 {
		return nil, fmt.Errorf("price is not a non-negative uint256 decimal string")
	}
	amount, ok := new(big.Int).SetString(p.Amount, 10)
	if !ok || amount.Sign() < 0 || amount.BitLen() > 256 {
		return nil, fmt.Errorf("amount is not a non-negative uint256 decimal string")
	}
	direction := exchange.DirectionSell
	if p.Direction == "BUY" {
		direction = exchange.DirectionBuy
	}
	return &exchange.Order{
		Nonce:      p.Nonce,
		Sender:     common.HexToAddress(p.Sender),
		Direction:  direction,
		Price:      price,
		Amount:     amount,
		Expired:    p.Expired,
		BaseToken:  common.HexToAddress(p.BaseToken),
		QuoteToken: common.HexToAddress(p.QuoteToken),
	}, nil
}

type transferRequest struct {
	Caller string `json:"caller" validate:"required"`
	Token  string `json:"token" validate:"required"`
	Amount string `json:"amount" validate:"required"`
}

type registerTokenRequest struct {
	Caller string `json:"caller" validate:"required"`
	Token  string `json:"token" validate:"required"`
}

type matchRequest struct {
	Caller         string       `json:"caller" validate:"required"`
	Maker          orderPayload `json:"maker" validate:"required"`
	MakerSignature string       `json:"maker_signature" validate:"required"`
	Taker          orderPayload `json:"taker" validate:"required"`
	TakerSignature string       `json:"taker_signature" validate:"required"`
}

func (s *Server) deposit(c *gin.Context) {
	var req transferRequest
	caller, token, amount, ok := s.bindTransfer(c, &req)
	if !ok {
		return
	}
	if err := s.engine.Deposit(c.Request.Context(), caller, token, amount); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deposited", "user": caller.Hex(), "token": token.Hex(), "amount": amount.String()})
}

func (s *Server) withdraw(c *gin.Context) {
	var req transferRequest
	caller, token, amount, ok := s.bindTransfer(c, &req)
	if !ok {
		return
	}
	if err := s.engine.Withdraw(c.Request.Context(), caller, token, amount); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "withdrawn", "user": caller.Hex(), "token": token.Hex(), "amount": amount.String()})
}

func (s *Server) addSupportedToken(c *gin.Context) {
	var req registerTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !common.IsHexAddress(req.Caller) || !common.IsHexAddress(req.Token) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "caller and token must be valid addresses"})
		return
	}
	if err := s.engine.AddSupportedToken(c.Request.Context(), common.HexToAddress(req.Caller), common.HexToAddress(req.Token)); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "registered", "token": common.HexToAddress(req.Token).Hex()})
}

func (s *Server) matchOrders(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !common.IsHexAddress(req.Caller) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "caller must be a valid address"})
		return
	}
	maker, err := req.Maker.toOrder()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("maker order: %v", err)})
		return
	}
	taker, err := req.Taker.toOrder()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("taker order: %v", err)})
		return
	}
	makerSig, err := hexutil.Decode(req.MakerSignature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "maker_signature is not valid hex"})
		return
	}
	takerSig, err := hexutil.Decode(req.TakerSignature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "taker_signature is not valid hex"})
		return
	}

	result, err := s.engine.MatchOrders(c.Request.Context(), common.HexToAddress(req.Caller), maker, makerSig, taker, takerSig)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) orderHash(c *gin.Context) {
	var payload orderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validator.Struct(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := payload.toOrder()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"digest": s.engine.GetOrderHash(order).Hex()})
}

func (s *Server) domainSeparator(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"domain_separator": s.engine.DomainSeparator().Hex()})
}

func (s *Server) userBalance(c *gin.Context) {
	user, token := c.Param("user"), c.Param("token")
	if !common.IsHexAddress(user) || !common.IsHexAddress(token) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user and token must be valid addresses"})
		return
	}
	balance, err := s.engine.UserBalance(c.Request.Context(), common.HexToAddress(user), common.HexToAddress(token))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":    common.HexToAddress(user).Hex(),
		"token":   common.HexToAddress(token).Hex(),
		"balance": balance.String(),
	})
}

func (s *Server) supportedToken(c *gin.Context) {
	token := c.Param("token")
	if !common.IsHexAddress(token) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token must be a valid address"})
		return
	}
	supported, err := s.engine.IsTokenSupported(c.Request.Context(), common.HexToAddress(token))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": common.HexToAddress(token).Hex(), "supported": supported})
}

func (s *Server) events(c *gin.Context) {
	limit, offset := intQuery(c, "limit", 100), intQuery(c, "offset", 0)
	events, err := s.engine.Events(c.Request.Context(), limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// bindTransfer parses the common deposit/withdraw request shape
func (s *Server) bindTransfer(c *gin.Context, req *transferRequest) (caller, token common.Address, amount *big.Int, ok bool) {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validator.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !common.IsHexAddress(req.Caller) || !common.IsHexAddress(req.Token) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "caller and token must be valid addresses"})
		return
	}
	amount, parsed := new(big.Int).SetString(req.Amount, 10)
	if !parsed || amount.Sign() < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount is not a non-negative decimal string"})
		return
	}
	return common.HexToAddress(req.Caller), common.HexToAddress(req.Token), amount, true
}

// writeError maps engine errors to HTTP statuses with a stable machine code
func (s *Server) writeError(c *gin.Context, err error) {
	code := exchange.RejectReason(err)
	status := http.StatusInternalServerError
	switch code {
	case "unauthorized":
		status = http.StatusForbidden
	case "invalid_amount", "invalid_signature", "invalid_signature_version", "token_not_supported":
		status = http.StatusBadRequest
	case "order_expired", "token_pair_mismatch", "directions_not_opposite", "insufficient_balance":
		status = http.StatusUnprocessableEntity
	case "nonce_already_used", "hash_already_used":
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func intQuery(c *gin.Context, key string, def int) int {
	raw, okq := c.GetQuery(key)
	if !okq {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
