package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/veil-vpn/veil/internal/application/account/usecases"
	"github.com/veil-vpn/veil/internal/shared/errors"
	"github.com/veil-vpn/veil/internal/shared/logger"
	"github.com/veil-vpn/veil/internal/shared/utils"
)

// AccountHandler serves user registration, balances and referrals.
type AccountHandler struct {
	registerUC        *usecases.RegisterUserUseCase
	acceptAgreementUC *usecases.AcceptAgreementUseCase
	topUpUC           *usecases.TopUpBalanceUseCase
	attachReferralUC  *usecases.AttachReferralUseCase
	summaryUC         *usecases.AccountSummaryUseCase
	logger            logger.Interface
}

func NewAccountHandler(
	registerUC *usecases.RegisterUserUseCase,
	acceptAgreementUC *usecases.AcceptAgreementUseCase,
	topUpUC *usecases.TopUpBalanceUseCase,
	attachReferralUC *usecases.AttachReferralUseCase,
	summaryUC *usecases.AccountSummaryUseCase,
) *AccountHandler {
	return &AccountHandler{
		registerUC:        registerUC,
		acceptAgreementUC: acceptAgreementUC,
		topUpUC:           topUpUC,
		attachReferralUC:  attachReferralUC,
		summaryUC:         summaryUC,
		logger:            logger.NewLogger(),
	}
}

type RegisterUserRequest struct {
	ExternalID int64  `json:"external_id" binding:"required"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

type TopUpRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

type AttachReferralRequest struct {
	ReferrerExternalID int64 `json:"referrer_external_id" binding:"required"`
	RefereeExternalID  int64 `json:"referee_external_id" binding:"required"`
}

func (h *AccountHandler) RegisterUser(c *gin.Context) {
	var req RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for register user", "error", err)
		utils.ErrorResponseWithError(c, errors.NewValidationError("Invalid request body", err.Error()))
		return
	}

	usr, err := h.registerUC.Execute(c.Request.Context(), req.ExternalID, req.Username, req.FirstName, req.LastName)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"external_id":        usr.ExternalID(),
		"balance":            usr.Balance(),
		"agreement_accepted": usr.AgreementAccepted(),
	}, "User registered successfully")
}

func (h *AccountHandler) GetAccountSummary(c *gin.Context) {
	externalID, err := parseExternalID(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	summary, err := h.summaryUC.Execute(c.Request.Context(), externalID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", summary)
}

func (h *AccountHandler) AcceptAgreement(c *gin.Context) {
	externalID, err := parseExternalID(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	if err := h.acceptAgreementUC.Execute(c.Request.Context(), externalID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Agreement accepted", nil)
}

func (h *AccountHandler) TopUpBalance(c *gin.Context) {
	externalID, err := parseExternalID(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for top up",
			"external_id", externalID,
			"error", err)
		utils.ErrorResponseWithError(c, errors.NewValidationError("Invalid request body", err.Error()))
		return
	}

	result, err := h.topUpUC.Execute(c.Request.Context(), externalID, req.Amount)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Balance topped up successfully", result)
}

func (h *AccountHandler) AttachReferral(c *gin.Context) {
	var req AttachReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for attach referral", "error", err)
		utils.ErrorResponseWithError(c, errors.NewValidationError("Invalid request body", err.Error()))
		return
	}

	if err := h.attachReferralUC.Execute(c.Request.Context(), req.ReferrerExternalID, req.RefereeExternalID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, nil, "Referral attached successfully")
}

func parseExternalID(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	externalID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || externalID <= 0 {
		return 0, errors.NewValidationError("Invalid user ID", raw)
	}
	return externalID, nil
}
