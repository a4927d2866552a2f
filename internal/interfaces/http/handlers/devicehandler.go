package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/veil-vpn/veil/internal/application/provisioning/usecases"
	"github.com/veil-vpn/veil/internal/domain/device"
	"github.com/veil-vpn/veil/internal/shared/errors"
	"github.com/veil-vpn/veil/internal/shared/logger"
	"github.com/veil-vpn/veil/internal/shared/utils"
)

// DeviceHandler serves device provisioning and removal.
type DeviceHandler struct {
	provisionUC  *usecases.ProvisionDeviceUseCase
	removeUC     *usecases.RemoveDeviceUseCase
	listUC       *usecases.ListDevicesUseCase
	getUC        *usecases.GetDeviceUseCase
	grantTrialUC *usecases.GrantTrialUseCase
	logger       logger.Interface
}

func NewDeviceHandler(
	provisionUC *usecases.ProvisionDeviceUseCase,
	removeUC *usecases.RemoveDeviceUseCase,
	listUC *usecases.ListDevicesUseCase,
	getUC *usecases.GetDeviceUseCase,
	grantTrialUC *usecases.GrantTrialUseCase,
) *DeviceHandler {
	return &DeviceHandler{
		provisionUC:  provisionUC,
		removeUC:     removeUC,
		listUC:       listUC,
		getUC:        getUC,
		grantTrialUC: grantTrialUC,
		logger:       logger.NewLogger(),
	}
}

type ProvisionDeviceRequest struct {
	DeviceType string `json:"device_type" binding:"required,devicetype"`
	Days       int    `json:"days" binding:"required,min=1,max=365"`
}

type GrantTrialRequest struct {
	Days int `json:"days" binding:"required,min=1,max=30"`
}

func (h *DeviceHandler) ProvisionDevice(c *gin.Context) {
	externalID, err := parseExternalID(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req ProvisionDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for provision device",
			"external_id", externalID,
			"error", err)
		utils.ErrorResponseWithError(c, errors.NewValidationError("Invalid request body", err.Error()))
		return
	}

	deviceType, err := device.ParseType(req.DeviceType)
	if err != nil {
		utils.ErrorResponseWithError(c, errors.NewValidationError("Unknown device type", req.DeviceType))
		return
	}
	if deviceType.IsTrial() {
		utils.ErrorResponseWithError(c, errors.NewValidationError("Trial devices are granted, not provisioned"))
		return
	}

	result, err := h.provisionUC.Execute(c.Request.Context(), externalID, deviceType, req.Days)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, result, "Device provisioned successfully")
}

func (h *DeviceHandler) ListDevices(c *gin.Context) {
	externalID, err := parseExternalID(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	devices, err := h.listUC.Execute(c.Request.Context(), externalID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", devices)
}

func (h *DeviceHandler) GetDevice(c *gin.Context) {
	externalID, err := parseExternalID(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	deviceID, err := parseDeviceID(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	result, err := h.getUC.Execute(c.Request.Context(), externalID, deviceID)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", result)
}

func (h *DeviceHandler) RemoveDevice(c *gin.Context) {
	externalID, err := parseExternalID(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	deviceID, err := parseDeviceID(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	if err := h.removeUC.Execute(c.Request.Context(), externalID, deviceID); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.NoContentResponse(c)
}

func (h *DeviceHandler) GrantTrial(c *gin.Context) {
	externalID, err := parseExternalID(c)
	if err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	var req GrantTrialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("invalid request body for grant trial",
			"external_id", externalID,
			"error", err)
		utils.ErrorResponseWithError(c, errors.NewValidationError("Invalid request body", err.Error()))
		return
	}

	if err := h.grantTrialUC.Execute(c.Request.Context(), externalID, req.Days); err != nil {
		utils.ErrorResponseWithError(c, err)
		return
	}

	utils.CreatedResponse(c, nil, "Trial granted successfully")
}

func parseDeviceID(c *gin.Context) (uint, error) {
	raw := c.Param("deviceID")
	deviceID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || deviceID == 0 {
		return 0, errors.NewValidationError("Invalid device ID", raw)
	}
	return uint(deviceID), nil
}
